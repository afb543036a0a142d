package scoreboard

import (
	"log"
	"os"
	"strings"
)

// ReadVersion returns the scoreboard release from the VERSION file, always
// prefixed with "V". A missing file reads as "Unknown" and any other read
// failure as "Error".
func ReadVersion(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "Unknown"
		}
		log.Printf("[scoreboard] reading %s: %v", path, err)
		return "Error"
	}
	v := strings.TrimSpace(string(data))
	if !strings.HasPrefix(strings.ToUpper(v), "V") {
		v = "V" + v
	}
	return v
}
