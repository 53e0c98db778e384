package bible

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// VerseText is one parsed verse of a translation file
type VerseText struct {
	Book    Book
	Chapter int
	Verse   int
	Text    string
}

// ParseResult holds the verses of a translation file and the books that
// could not be matched to the canon
type ParseResult struct {
	Verses       []VerseText
	SkippedBooks []string
}

// Zefania layout: XMLBIBLE > BIBLEBOOK > CHAPTER > VERS
type zefaniaBook struct {
	Number   string           `xml:"bnumber,attr"`
	Name     string           `xml:"bname,attr"`
	Chapters []zefaniaChapter `xml:"CHAPTER"`
}

type zefaniaChapter struct {
	Number string        `xml:"cnumber,attr"`
	Verses []zefaniaVers `xml:"VERS"`
}

type zefaniaVers struct {
	Number string `xml:"vnumber,attr"`
	Text   string `xml:",chardata"`
}

// Plain layout: bible > book > chapter > verse
type plainBook struct {
	Num      string         `xml:"num,attr"`
	BNumber  string         `xml:"bnumber,attr"`
	Name     string         `xml:"name,attr"`
	BName    string         `xml:"bname,attr"`
	Chapters []plainChapter `xml:"chapter"`
}

type plainChapter struct {
	Num     string       `xml:"num,attr"`
	CNumber string       `xml:"cnumber,attr"`
	Verses  []plainVerse `xml:"verse"`
}

type plainVerse struct {
	Num     string `xml:"num,attr"`
	VNumber string `xml:"vnumber,attr"`
	Text    string `xml:",chardata"`
}

type xmlDocument struct {
	XMLName      xml.Name
	ZefaniaBooks []zefaniaBook `xml:"BIBLEBOOK"`
	PlainBooks   []plainBook   `xml:"book"`
}

type rawVerse struct {
	chapter, verse, text string
}

// ParseXML reads a translation in either the Zefania layout or the plain
// bible/book/chapter/verse layout. Books are matched by number first, then
// by name. Unknown books are skipped; malformed chapters and verses fail the
// whole file.
func ParseXML(r io.Reader) (*ParseResult, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode bible XML: %w", err)
	}

	res := &ParseResult{}
	add := func(number, name string, verses []rawVerse) error {
		book, ok := resolveBook(number, name)
		if !ok {
			res.SkippedBooks = append(res.SkippedBooks, firstNonEmpty(name, number))
			return nil
		}
		for _, v := range verses {
			parsed, err := parseVerse(book, v)
			if err != nil {
				return err
			}
			res.Verses = append(res.Verses, parsed)
		}
		return nil
	}

	for _, b := range doc.ZefaniaBooks {
		var verses []rawVerse
		for _, c := range b.Chapters {
			for _, v := range c.Verses {
				verses = append(verses, rawVerse{chapter: c.Number, verse: v.Number, text: v.Text})
			}
		}
		if err := add(b.Number, b.Name, verses); err != nil {
			return nil, err
		}
	}
	for _, b := range doc.PlainBooks {
		var verses []rawVerse
		for _, c := range b.Chapters {
			chapter := firstNonEmpty(c.Num, c.CNumber)
			for _, v := range c.Verses {
				verses = append(verses, rawVerse{chapter: chapter, verse: firstNonEmpty(v.Num, v.VNumber), text: v.Text})
			}
		}
		if err := add(firstNonEmpty(b.Num, b.BNumber), firstNonEmpty(b.Name, b.BName), verses); err != nil {
			return nil, err
		}
	}

	if len(res.Verses) == 0 {
		return nil, fmt.Errorf("no verses found (expected XMLBIBLE/BIBLEBOOK or bible/book elements, got <%s>)", doc.XMLName.Local)
	}
	return res, nil
}

func resolveBook(number, name string) (Book, bool) {
	if number != "" {
		if b, ok := LookupBook(number); ok {
			return b, true
		}
	}
	return LookupBook(name)
}

func parseVerse(book Book, v rawVerse) (VerseText, error) {
	chapter, err := strconv.Atoi(strings.TrimSpace(v.chapter))
	if err != nil || !book.HasChapter(chapter) {
		return VerseText{}, fmt.Errorf("%s: invalid chapter %q", book.ID, v.chapter)
	}
	verse, err := strconv.Atoi(strings.TrimSpace(v.verse))
	if err != nil || verse <= 0 {
		return VerseText{}, fmt.Errorf("%s %d: invalid verse %q", book.ID, chapter, v.verse)
	}
	text := strings.Join(strings.Fields(v.text), " ")
	if text == "" {
		return VerseText{}, fmt.Errorf("%s %d:%d: empty text", book.ID, chapter, verse)
	}
	return VerseText{Book: book, Chapter: chapter, Verse: verse, Text: text}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
