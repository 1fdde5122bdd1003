package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_FixedWidth(t *testing.T) {
	text := strings.Repeat("a", 1200)
	chunks := Chunk(text, 500)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantLens := []int{500, 500, 200}
	for i, ch := range chunks {
		if len(ch) != wantLens[i] {
			t.Errorf("chunk %d len=%d, want %d", i, len(ch), wantLens[i])
		}
	}
}

func TestChunk_ExactMultiple(t *testing.T) {
	chunks := Chunk(strings.Repeat("b", 1000), 500)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestChunk_ShortText(t *testing.T) {
	chunks := Chunk("hello", 500)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("got %v", chunks)
	}
}

func TestChunk_Empty(t *testing.T) {
	if chunks := Chunk("", 500); chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestChunk_ConcatenationPreservesText(t *testing.T) {
	text := "The mitochondria is the powerhouse of the cell. 細胞の発電所。 " + strings.Repeat("xyz ", 40)
	chunks := Chunk(text, 7)
	if strings.Join(chunks, "") != text {
		t.Error("concatenated chunks differ from input")
	}
	for i, ch := range chunks[:len(chunks)-1] {
		if n := utf8.RuneCountInString(ch); n != 7 {
			t.Errorf("chunk %d has %d characters, want 7", i, n)
		}
	}
}

func TestChunk_DefaultSize(t *testing.T) {
	chunks := Chunk(strings.Repeat("c", 501), 0)
	if len(chunks) != 2 {
		t.Errorf("size 0 should use default %d, got %d chunks", DefaultChunkSize, len(chunks))
	}
}

func TestChunker_Chunk(t *testing.T) {
	c := NewChunker(3)
	if c.Size() != 3 {
		t.Fatalf("Size()=%d", c.Size())
	}
	got := c.Chunk("abcdefg")
	want := []string{"abc", "def", "g"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
	if NewChunker(-1).Size() != DefaultChunkSize {
		t.Error("negative size should fall back to default")
	}
}
