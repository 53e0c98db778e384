// Package bible holds the canonical 66-book table used to order sequential
// transcription and to resolve book names from imports and requests.
package bible

import (
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/verse-scribe/internal/types"
)

// Book is one entry of the canonical table
type Book struct {
	Number     int             `json:"number"` // 1-66, canonical order
	ID         string          `json:"id"`     // slug of the English name
	Name       string          `json:"name"`
	KoreanName string          `json:"koreanName"`
	Testament  types.Testament `json:"testament"`
	Chapters   int             `json:"chapters"`
}

// Position addresses a chapter within the canon
type Position struct {
	Book    Book `json:"book"`
	Chapter int  `json:"chapter"`
}

var books = []Book{
	{1, "genesis", "Genesis", "창세기", types.TestamentOld, 50},
	{2, "exodus", "Exodus", "출애굽기", types.TestamentOld, 40},
	{3, "leviticus", "Leviticus", "레위기", types.TestamentOld, 27},
	{4, "numbers", "Numbers", "민수기", types.TestamentOld, 36},
	{5, "deuteronomy", "Deuteronomy", "신명기", types.TestamentOld, 34},
	{6, "joshua", "Joshua", "여호수아", types.TestamentOld, 24},
	{7, "judges", "Judges", "사사기", types.TestamentOld, 21},
	{8, "ruth", "Ruth", "룻기", types.TestamentOld, 4},
	{9, "1-samuel", "1 Samuel", "사무엘상", types.TestamentOld, 31},
	{10, "2-samuel", "2 Samuel", "사무엘하", types.TestamentOld, 24},
	{11, "1-kings", "1 Kings", "열왕기상", types.TestamentOld, 22},
	{12, "2-kings", "2 Kings", "열왕기하", types.TestamentOld, 25},
	{13, "1-chronicles", "1 Chronicles", "역대상", types.TestamentOld, 29},
	{14, "2-chronicles", "2 Chronicles", "역대하", types.TestamentOld, 36},
	{15, "ezra", "Ezra", "에스라", types.TestamentOld, 10},
	{16, "nehemiah", "Nehemiah", "느헤미야", types.TestamentOld, 13},
	{17, "esther", "Esther", "에스더", types.TestamentOld, 10},
	{18, "job", "Job", "욥기", types.TestamentOld, 42},
	{19, "psalms", "Psalms", "시편", types.TestamentOld, 150},
	{20, "proverbs", "Proverbs", "잠언", types.TestamentOld, 31},
	{21, "ecclesiastes", "Ecclesiastes", "전도서", types.TestamentOld, 12},
	{22, "song-of-solomon", "Song of Solomon", "아가", types.TestamentOld, 8},
	{23, "isaiah", "Isaiah", "이사야", types.TestamentOld, 66},
	{24, "jeremiah", "Jeremiah", "예레미야", types.TestamentOld, 52},
	{25, "lamentations", "Lamentations", "예레미야애가", types.TestamentOld, 5},
	{26, "ezekiel", "Ezekiel", "에스겔", types.TestamentOld, 48},
	{27, "daniel", "Daniel", "다니엘", types.TestamentOld, 12},
	{28, "hosea", "Hosea", "호세아", types.TestamentOld, 14},
	{29, "joel", "Joel", "요엘", types.TestamentOld, 3},
	{30, "amos", "Amos", "아모스", types.TestamentOld, 9},
	{31, "obadiah", "Obadiah", "오바댜", types.TestamentOld, 1},
	{32, "jonah", "Jonah", "요나", types.TestamentOld, 4},
	{33, "micah", "Micah", "미가", types.TestamentOld, 7},
	{34, "nahum", "Nahum", "나훔", types.TestamentOld, 3},
	{35, "habakkuk", "Habakkuk", "하박국", types.TestamentOld, 3},
	{36, "zephaniah", "Zephaniah", "스바냐", types.TestamentOld, 3},
	{37, "haggai", "Haggai", "학개", types.TestamentOld, 2},
	{38, "zechariah", "Zechariah", "스가랴", types.TestamentOld, 14},
	{39, "malachi", "Malachi", "말라기", types.TestamentOld, 4},
	{40, "matthew", "Matthew", "마태복음", types.TestamentNew, 28},
	{41, "mark", "Mark", "마가복음", types.TestamentNew, 16},
	{42, "luke", "Luke", "누가복음", types.TestamentNew, 24},
	{43, "john", "John", "요한복음", types.TestamentNew, 21},
	{44, "acts", "Acts", "사도행전", types.TestamentNew, 28},
	{45, "romans", "Romans", "로마서", types.TestamentNew, 16},
	{46, "1-corinthians", "1 Corinthians", "고린도전서", types.TestamentNew, 16},
	{47, "2-corinthians", "2 Corinthians", "고린도후서", types.TestamentNew, 13},
	{48, "galatians", "Galatians", "갈라디아서", types.TestamentNew, 6},
	{49, "ephesians", "Ephesians", "에베소서", types.TestamentNew, 6},
	{50, "philippians", "Philippians", "빌립보서", types.TestamentNew, 4},
	{51, "colossians", "Colossians", "골로새서", types.TestamentNew, 4},
	{52, "1-thessalonians", "1 Thessalonians", "데살로니가전서", types.TestamentNew, 5},
	{53, "2-thessalonians", "2 Thessalonians", "데살로니가후서", types.TestamentNew, 3},
	{54, "1-timothy", "1 Timothy", "디모데전서", types.TestamentNew, 6},
	{55, "2-timothy", "2 Timothy", "디모데후서", types.TestamentNew, 4},
	{56, "titus", "Titus", "디도서", types.TestamentNew, 3},
	{57, "philemon", "Philemon", "빌레몬서", types.TestamentNew, 1},
	{58, "hebrews", "Hebrews", "히브리서", types.TestamentNew, 13},
	{59, "james", "James", "야고보서", types.TestamentNew, 5},
	{60, "1-peter", "1 Peter", "베드로전서", types.TestamentNew, 5},
	{61, "2-peter", "2 Peter", "베드로후서", types.TestamentNew, 3},
	{62, "1-john", "1 John", "요한일서", types.TestamentNew, 5},
	{63, "2-john", "2 John", "요한이서", types.TestamentNew, 1},
	{64, "3-john", "3 John", "요한삼서", types.TestamentNew, 1},
	{65, "jude", "Jude", "유다서", types.TestamentNew, 1},
	{66, "revelation", "Revelation", "요한계시록", types.TestamentNew, 22},
}

var (
	byID     = make(map[string]Book, len(books))
	byKorean = make(map[string]Book, len(books))
)

func init() {
	for _, b := range books {
		byID[b.ID] = b
		byKorean[b.KoreanName] = b
	}
}

// DefaultBook is where sequential transcription starts
const DefaultBook = "genesis"

// Books returns the canon in order
func Books() []Book {
	out := make([]Book, len(books))
	copy(out, books)
	return out
}

// ByNumber returns the book with canonical number n
func ByNumber(n int) (Book, bool) {
	if n < 1 || n > len(books) {
		return Book{}, false
	}
	return books[n-1], true
}

// LookupBook resolves a canonical number, slug id, English name or Korean name
func LookupBook(nameOrID string) (Book, bool) {
	s := strings.TrimSpace(nameOrID)
	if s == "" {
		return Book{}, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return ByNumber(n)
	}
	if b, ok := byKorean[s]; ok {
		return b, true
	}
	b, ok := byID[slug.Make(s)]
	return b, ok
}

// HasChapter reports whether chapter exists in the book
func (b Book) HasChapter(chapter int) bool {
	return chapter >= 1 && chapter <= b.Chapters
}

// NextChapter walks canonical order: the last chapter of a book is followed
// by chapter 1 of the next book. ok is false after Revelation 22 or for an
// unknown position.
func NextChapter(bookID string, chapter int) (Position, bool) {
	b, found := byID[bookID]
	if !found || !b.HasChapter(chapter) {
		return Position{}, false
	}
	if chapter < b.Chapters {
		return Position{Book: b, Chapter: chapter + 1}, true
	}
	next, ok := ByNumber(b.Number + 1)
	if !ok {
		return Position{}, false
	}
	return Position{Book: next, Chapter: 1}, true
}
