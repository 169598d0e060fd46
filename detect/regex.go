package detect

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultRegexTimeout bounds a single pattern match against backtracking blowups
const DefaultRegexTimeout = 500 * time.Millisecond

// ErrRegexTimeout is returned when a match exceeds its timeout
var ErrRegexTimeout = errors.New("regex evaluation timeout")

// CompilePattern compiles a rule condition with a match timeout
func CompilePattern(pattern string, timeout time.Duration) (*regexp2.Regexp, error) {
	if timeout <= 0 {
		timeout = DefaultRegexTimeout
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = timeout
	return re, nil
}

// MatchPattern reports whether re finds a match anywhere in input
func MatchPattern(re *regexp2.Regexp, input string) (bool, error) {
	if re == nil {
		return false, errors.New("regex pattern is nil")
	}
	matched, err := re.MatchString(input)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRegexTimeout, err)
	}
	return matched, nil
}
