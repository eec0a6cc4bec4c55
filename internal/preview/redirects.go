package preview

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	siteerrors "github.com/conneroisu/folio/internal/errors"
)

// Redirect sends paths matching Pattern to Location.
type Redirect struct {
	Pattern  *regexp.Regexp
	Location string
}

// ParseRedirectMap reads one "source target" pair per line, source being a
// regular expression matched against the request path. Lines without both
// fields are ignored.
func ParseRedirectMap(r io.Reader) ([]Redirect, error) {
	var redirects []Redirect
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		pattern, err := regexp.Compile(fields[0])
		if err != nil {
			return nil, siteerrors.NewValidation(siteerrors.CodeInvalidConfig,
				fmt.Sprintf("redirect map line %d: %v", line, err))
		}
		redirects = append(redirects, Redirect{Pattern: pattern, Location: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read redirect map: %w", err)
	}
	return redirects, nil
}

// LoadRedirectMap parses the redirect map file at path.
func LoadRedirectMap(path string) ([]Redirect, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, siteerrors.NewIO(siteerrors.CodeReadFailed, path, err)
	}
	defer f.Close()

	redirects, err := ParseRedirectMap(f)
	var siteErr *siteerrors.SiteError
	if errors.As(err, &siteErr) {
		return nil, siteErr.WithPath(path)
	}
	if err != nil {
		return nil, err
	}
	return redirects, nil
}
