// Package program reads and writes Intcode program images in their text
// form: signed integers separated by commas.
package program

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var imageLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Commas between words are optional; whitespace alone also separates them.
// Words are captured as text so that they are always read in base 10;
// participle's own integer conversion treats a leading zero as octal.
type image struct {
	Words []string `(@Int ","?)*`
}

var parser = participle.MustBuild[image](
	participle.Lexer(imageLexer),
	participle.Elide("Comment", "Whitespace"),
)

// Parse reads a program image from r.
// Blank input parses as an image of length zero.
func Parse(r io.Reader) ([]int64, error) {
	return parse("", r)
}

// ParseString is like Parse but reads from s.
func ParseString(s string) ([]int64, error) {
	return parse("", strings.NewReader(s))
}

// ParseFile reads a program image from the named file.
func ParseFile(name string) ([]int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(name, f)
}

func parse(name string, r io.Reader) ([]int64, error) {
	img, err := parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}
	var words []int64
	for i, w := range img.Words {
		v, err := strconv.ParseInt(w, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing program: word %d: %w", i, err)
		}
		words = append(words, v)
	}
	return words, nil
}

// Format writes image to w in its canonical form, followed by a newline.
func Format(w io.Writer, image []int64) error {
	bw := bufio.NewWriter(w)
	for i, v := range image {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString(strconv.FormatInt(v, 10))
	}
	bw.WriteByte('\n')
	return bw.Flush()
}
