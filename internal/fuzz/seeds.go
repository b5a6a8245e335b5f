package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// один сид не должен раздувать корпус
const maxSeedBytes = 64 << 10

// inlineSeeds keep the fuzzers useful even when testdata and README are
// missing: a plain module, the import forms, and a stub-style overload.
var inlineSeeds = []string{
	"",
	"import os\nfrom typing import List\n\ndef main() -> None:\n    pass\n",
	"from . import sibling\nfrom ..pkg import name as alias\n",
	"from os.path import *\n\n__all__ = [\"join\", \"split\"]\n",
	"class C:\n    @overload\n    def get(self, key: str) -> str: ...\n",
}

func addCorpusSeeds(f *testing.F) {
	for _, s := range inlineSeeds {
		f.Add([]byte(s))
	}
	for _, src := range testdataSources() {
		f.Add(src)
	}
	for _, src := range readmeSnippets() {
		f.Add(src)
	}
}

// testdataSources collects every Python file under the repository
// testdata tree. Missing trees and unreadable files are skipped, the
// corpus just gets smaller.
func testdataSources() [][]byte {
	root := filepath.Join("..", "..", "testdata")
	var sources [][]byte
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".py", ".pyi":
		default:
			return nil
		}
		// #nosec G304 -- path comes from the repository testdata walk
		src, err := os.ReadFile(path)
		if err == nil {
			sources = append(sources, clamp(src))
		}
		return nil
	})
	return sources
}

// readmeSnippets pulls the fenced python blocks out of README.md.
// Fences split the document into alternating prose and code chunks, so
// the odd-numbered chunks tagged python are the ones to keep.
func readmeSnippets() [][]byte {
	// #nosec G304 -- fixed repository location
	data, err := os.ReadFile(filepath.Join("..", "..", "README.md"))
	if err != nil {
		return nil
	}

	chunks := strings.Split(string(data), "```")
	var snippets [][]byte
	for i := 1; i < len(chunks); i += 2 {
		tag, body, found := strings.Cut(chunks[i], "\n")
		if !found || strings.TrimSpace(tag) != "python" {
			continue
		}
		if body = strings.TrimRight(body, "\n"); body != "" {
			snippets = append(snippets, clamp([]byte(body)))
		}
	}
	return snippets
}

func clamp(src []byte) []byte {
	if len(src) > maxSeedBytes {
		src = src[:maxSeedBytes]
	}
	return append([]byte(nil), src...)
}
