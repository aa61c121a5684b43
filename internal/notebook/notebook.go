// Package notebook reads Jupyter notebooks into a typed cell model and
// re-encodes them for the content store.
package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/nbpress/internal/apperr"
)

// Version is the nbformat major version documents are normalised to.
const Version = 4

// Kind tags a cell variant.
type Kind string

const (
	KindHeading  Kind = "heading"
	KindMarkdown Kind = "markdown"
	KindCode     Kind = "code"
)

// Cell is one fragment of a document. It is implemented only by
// HeadingCell, MarkdownCell and CodeCell.
type Cell interface {
	Kind() Kind
	Text() string
	isCell()
}

// HeadingCell is an nbformat 3 heading cell.
type HeadingCell struct {
	Level  int
	Source string
}

// MarkdownCell is a prose fragment.
type MarkdownCell struct {
	Source string
}

// CodeCell is a source-code fragment. Language comes from the document's
// kernel metadata unless the cell carries its own (nbformat 3).
type CodeCell struct {
	Source   string
	Language string
}

func (HeadingCell) Kind() Kind  { return KindHeading }
func (MarkdownCell) Kind() Kind { return KindMarkdown }
func (CodeCell) Kind() Kind     { return KindCode }

func (c HeadingCell) Text() string  { return c.Source }
func (c MarkdownCell) Text() string { return c.Source }
func (c CodeCell) Text() string     { return c.Source }

func (HeadingCell) isCell()  {}
func (MarkdownCell) isCell() {}
func (CodeCell) isCell()     {}

// Language is the kernel language recorded in the notebook metadata.
type Language struct {
	Name    string
	Version string
}

// Document is a decoded notebook.
type Document struct {
	Format   int // nbformat major version the file reported
	Language Language
	Cells    []Cell
}

// reader decodes one nbformat major version.
type reader func(data []byte) (*Document, error)

var readers = map[int]reader{
	4: decodeV4,
	3: decodeV3,
}

// Decode parses a notebook. It reads at Version first and, when the file
// reports a different major version, retries with that version's reader.
// A notebook readable by neither yields an error wrapping
// apperr.ErrUnsupportedVersion.
func Decode(data []byte) (*Document, error) {
	var head struct {
		NBFormat int `json:"nbformat"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("notebook: decode: %w", err)
	}
	if head.NBFormat == Version {
		doc, err := readers[Version](data)
		if err != nil {
			return nil, fmt.Errorf("notebook: decode v%d: %w", Version, err)
		}
		return doc, nil
	}
	read, ok := readers[head.NBFormat]
	if !ok {
		return nil, fmt.Errorf("notebook: nbformat %d: %w", head.NBFormat, apperr.ErrUnsupportedVersion)
	}
	doc, err := read(data)
	if err != nil {
		return nil, fmt.Errorf("notebook: nbformat %d: %w: %w", head.NBFormat, apperr.ErrUnsupportedVersion, err)
	}
	return doc, nil
}

// multiline is an nbformat text field: a string or a list of lines.
type multiline string

func (m *multiline) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = ""
		return nil
	}
	if b[0] == '[' {
		var lines []string
		if err := json.Unmarshal(b, &lines); err != nil {
			return err
		}
		*m = multiline(strings.Join(lines, ""))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*m = multiline(s)
	return nil
}

type rawMetadata struct {
	LanguageInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"language_info"`
	Kernelspec struct {
		Language string `json:"language"`
	} `json:"kernelspec"`
	Language string `json:"language"`
}

func (m rawMetadata) language() Language {
	lang := Language{Name: m.LanguageInfo.Name, Version: m.LanguageInfo.Version}
	if lang.Name == "" {
		lang.Name = m.Kernelspec.Language
	}
	if lang.Name == "" {
		lang.Name = m.Language
	}
	return lang
}

type rawCell struct {
	CellType string    `json:"cell_type"`
	Source   multiline `json:"source"`
	Input    multiline `json:"input"`
	Level    int       `json:"level"`
	Language string    `json:"language"`
}

func (c rawCell) toCell(docLang string) Cell {
	switch c.CellType {
	case "markdown":
		return MarkdownCell{Source: string(c.Source)}
	case "heading":
		level := c.Level
		if level == 0 {
			level = 1
		}
		return HeadingCell{Level: level, Source: string(c.Source)}
	case "code":
		src := string(c.Source)
		if src == "" {
			src = string(c.Input)
		}
		lang := c.Language
		if lang == "" {
			lang = docLang
		}
		return CodeCell{Source: src, Language: lang}
	}
	return nil
}

func decodeV4(data []byte) (*Document, error) {
	var raw struct {
		NBFormat int         `json:"nbformat"`
		Metadata rawMetadata `json:"metadata"`
		Cells    []rawCell   `json:"cells"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	doc := &Document{Format: raw.NBFormat, Language: raw.Metadata.language()}
	for _, rc := range raw.Cells {
		if c := rc.toCell(doc.Language.Name); c != nil {
			doc.Cells = append(doc.Cells, c)
		}
	}
	return doc, nil
}

func decodeV3(data []byte) (*Document, error) {
	var raw struct {
		NBFormat   int         `json:"nbformat"`
		Metadata   rawMetadata `json:"metadata"`
		Worksheets []struct {
			Cells []rawCell `json:"cells"`
		} `json:"worksheets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Worksheets == nil {
		return nil, fmt.Errorf("no worksheets")
	}
	doc := &Document{Format: raw.NBFormat, Language: raw.Metadata.language()}
	for _, ws := range raw.Worksheets {
		for _, rc := range ws.Cells {
			if doc.Language.Name == "" && rc.CellType == "code" {
				doc.Language.Name = rc.Language
			}
			if c := rc.toCell(doc.Language.Name); c != nil {
				doc.Cells = append(doc.Cells, c)
			}
		}
	}
	return doc, nil
}
