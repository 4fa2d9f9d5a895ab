package tickets

import (
	"strconv"
	"sync"

	"go.elara.ws/pcre"
)

// Name patterns in priority order: current T###-..., then legacy ##_...
var namePatterns = []string{
	`^T(\d{3,})-`,
	`^(\d{2,})_`,
}

type regexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

var patterns = &regexCache{compiled: make(map[string]*pcre.Regexp)}

func (rc *regexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// ParseIndex extracts the ticket number embedded in a photo filename.
// ok is false when the name matches no known pattern or the number does not fit an int.
func ParseIndex(name string) (n int, ok bool) {
	for _, pattern := range namePatterns {
		regex, err := patterns.get(pattern)
		if err != nil {
			continue
		}
		matches := regex.FindStringSubmatch(name)
		if len(matches) < 2 {
			continue
		}
		v, err := strconv.Atoi(matches[1])
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
