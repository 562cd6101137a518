// Package contract handles gateway contract id parsing and formatting.
//
// Ids follow CON.F.{region}.{root}.{month code}{yy}, for example
// CON.F.US.EP.H25 for the March 2025 E-mini S&P 500.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var idRegex = regexp.MustCompile(`^CON\.F\.([A-Z]{2})\.([A-Z0-9]+)\.([FGHJKMNQUVXZ])(\d{2})$`)

// monthCodes maps futures month letters to calendar months.
var monthCodes = map[byte]time.Month{
	'F': time.January,
	'G': time.February,
	'H': time.March,
	'J': time.April,
	'K': time.May,
	'M': time.June,
	'N': time.July,
	'Q': time.August,
	'U': time.September,
	'V': time.October,
	'X': time.November,
	'Z': time.December,
}

var (
	ErrInvalidID    = errors.New("contract: invalid contract id")
	ErrInvalidMonth = errors.New("contract: invalid month")
)

// ID is a parsed contract id.
type ID struct {
	Raw    string     `json:"raw"`
	Region string     `json:"region"`
	Root   string     `json:"root"`
	Month  time.Month `json:"month"`
	Year   int        `json:"year"`
}

// Parse parses and validates a contract id.
func Parse(id string) (*ID, error) {
	matches := idRegex.FindStringSubmatch(id)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected CON.F.{region}.{root}.{month}{yy})", ErrInvalidID, id)
	}
	yy, _ := strconv.Atoi(matches[4])
	return &ID{
		Raw:    id,
		Region: matches[1],
		Root:   matches[2],
		Month:  monthCodes[matches[3][0]],
		Year:   2000 + yy,
	}, nil
}

// SymbolID is the symbol shared by every expiry of the contract,
// e.g. F.US.EP.
func (c *ID) SymbolID() string {
	return "F." + c.Region + "." + c.Root
}

// Code is the month letter and two-digit year, e.g. H25.
func (c *ID) Code() string {
	return string(MonthCode(c.Month)) + fmt.Sprintf("%02d", c.Year%100)
}

// Expiry is the first day of the contract month.
func (c *ID) Expiry() time.Time {
	return time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Format builds the id for symbolID expiring in month/year. symbolID is
// F.{region}.{root}.
func Format(symbolID string, month time.Month, year int) (string, error) {
	code := MonthCode(month)
	if code == 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	id := fmt.Sprintf("CON.%s.%c%02d", symbolID, code, year%100)
	if _, err := Parse(id); err != nil {
		return "", err
	}
	return id, nil
}

// MonthCode returns the futures letter for m, or 0 if m is out of range.
func MonthCode(m time.Month) byte {
	for code, month := range monthCodes {
		if month == m {
			return code
		}
	}
	return 0
}

// DisplayName renders a short name such as "EP H25".
func DisplayName(c *ID) string {
	return strings.Join([]string{c.Root, c.Code()}, " ")
}
