// Package sourcemap translates between byte offsets and character positions
// in source files. All state lives in an explicit Context scoped to one
// analysis run.
package sourcemap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"rustcplugin/cache"
)

// CharPos is a zero-based line and character (not byte) column.
type CharPos struct {
	Line   int
	Column int
}

// String renders the position one-based, as editors and compilers do.
func (p CharPos) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Column+1)
}

// FilenameIndex identifies a file interned in a Context.
type FilenameIndex int

// Range is a character range within one file.
type Range struct {
	File  FilenameIndex
	Start CharPos
	End   CharPos
}

type charByteMapping struct {
	byteToChar map[int]CharPos
	charToByte map[CharPos]int
}

// Every character start gets an entry, plus one past the last character of
// each line so that exclusive range ends resolve.
func buildMapping(src []byte) charByteMapping {
	m := charByteMapping{
		byteToChar: make(map[int]CharPos),
		charToByte: make(map[CharPos]int),
	}
	insert := func(b int, c CharPos) {
		m.byteToChar[b] = c
		m.charToByte[c] = b
	}

	line, column := 0, 0
	for offset := 0; offset < len(src); {
		r, size := utf8.DecodeRune(src[offset:])
		insert(offset, CharPos{Line: line, Column: column})
		offset += size
		if r == '\n' {
			line++
			column = 0
			continue
		}
		column++
	}
	insert(len(src), CharPos{Line: line, Column: column})
	return m
}

type sourceFile struct {
	src     []byte
	mapping charByteMapping
	err     error
}

// Context interns file names and memoizes each file's contents and offset
// tables. A file is read at most once per Context.
type Context struct {
	// ReadFile loads a file's contents. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	filenames []string
	indices   map[string]FilenameIndex
	files     cache.Cache[FilenameIndex, sourceFile]
}

func NewContext() *Context {
	return &Context{indices: make(map[string]FilenameIndex)}
}

// Intern returns the index for path, adding it on first use. Paths are
// cleaned so that equivalent spellings share an index.
func (c *Context) Intern(path string) FilenameIndex {
	if c.indices == nil {
		c.indices = make(map[string]FilenameIndex)
	}
	path = filepath.Clean(path)
	if idx, ok := c.indices[path]; ok {
		return idx
	}
	idx := FilenameIndex(len(c.filenames))
	c.filenames = append(c.filenames, path)
	c.indices[path] = idx
	return idx
}

// Filename returns the path interned under idx.
func (c *Context) Filename(idx FilenameIndex) (string, error) {
	if idx < 0 || int(idx) >= len(c.filenames) {
		return "", fmt.Errorf("missing file index %d", idx)
	}
	return c.filenames[idx], nil
}

func (c *Context) file(idx FilenameIndex) (*sourceFile, error) {
	path, err := c.Filename(idx)
	if err != nil {
		return nil, err
	}
	f := c.files.Get(idx, func(FilenameIndex) sourceFile {
		read := c.ReadFile
		if read == nil {
			read = os.ReadFile
		}
		src, err := read(path)
		if err != nil {
			return sourceFile{err: fmt.Errorf("reading %s: %w", path, err)}
		}
		return sourceFile{src: src, mapping: buildMapping(src)}
	})
	return f, f.err
}

// Source returns the contents of the file interned under idx.
func (c *Context) Source(idx FilenameIndex) ([]byte, error) {
	f, err := c.file(idx)
	if err != nil {
		return nil, err
	}
	return f.src, nil
}

func (c *Context) mapping(idx FilenameIndex) (charByteMapping, error) {
	f, err := c.file(idx)
	if err != nil {
		return charByteMapping{}, err
	}
	return f.mapping, nil
}

// ByteToChar converts a byte offset that starts a character (or ends a line)
// into a character position.
func (c *Context) ByteToChar(idx FilenameIndex, offset int) (CharPos, error) {
	m, err := c.mapping(idx)
	if err != nil {
		return CharPos{}, err
	}
	pos, ok := m.byteToChar[offset]
	if !ok {
		return CharPos{}, fmt.Errorf("could not find char pos for byte %d in %s", offset, c.filenames[idx])
	}
	return pos, nil
}

// CharToByte is the inverse of ByteToChar.
func (c *Context) CharToByte(idx FilenameIndex, pos CharPos) (int, error) {
	m, err := c.mapping(idx)
	if err != nil {
		return 0, err
	}
	offset, ok := m.charToByte[pos]
	if !ok {
		return 0, fmt.Errorf("could not find byte pos for %s in %s", pos, c.filenames[idx])
	}
	return offset, nil
}

// Range converts the byte range [start, end) of a file.
func (c *Context) Range(idx FilenameIndex, start, end int) (Range, error) {
	if end < start {
		return Range{}, fmt.Errorf("invalid range: %d > %d", start, end)
	}
	s, err := c.ByteToChar(idx, start)
	if err != nil {
		return Range{}, err
	}
	e, err := c.ByteToChar(idx, end)
	if err != nil {
		return Range{}, err
	}
	return Range{File: idx, Start: s, End: e}, nil
}

// FormatPos renders file:line:col for a byte offset, or "" when the offset
// cannot be resolved.
func (c *Context) FormatPos(idx FilenameIndex, offset int) string {
	pos, err := c.ByteToChar(idx, offset)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.filenames[idx], pos)
}

// Len is the number of files that have been loaded.
func (c *Context) Len() int {
	return c.files.Len()
}

// RelativeTo shortens an interned path for display when it lies under base.
func (c *Context) RelativeTo(idx FilenameIndex, base string) string {
	path, err := c.Filename(idx)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(base, path)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rel
	}
	return path
}
