package corpus

import (
	"strconv"
	"strings"
)

// ParseReference recognises typed references such as "1.2.3", "1:2:3",
// "1 2 3" or "mandala 1 sukta 2 rik 3". A two-part reference addresses a
// sukta and leaves Rik at zero. ok is false when query is free text.
func ParseReference(query string) (Reference, bool) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return Reference{}, false
	}

	if ref, ok := parseLabelled(strings.Fields(query)); ok {
		return ref, true
	}

	parts := strings.FieldsFunc(query, func(r rune) bool {
		return r == '.' || r == ':' || r == ' ' || r == ','
	})
	if len(parts) < 2 || len(parts) > 3 {
		return Reference{}, false
	}

	nums := make([]int, 0, 3)
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return Reference{}, false
		}
		nums = append(nums, n)
	}

	ref := Reference{Mandala: nums[0], Sukta: nums[1]}
	if len(nums) == 3 {
		ref.Rik = nums[2]
	}
	return ref, true
}

func parseLabelled(words []string) (Reference, bool) {
	if len(words) < 4 || len(words)%2 != 0 {
		return Reference{}, false
	}

	var ref Reference
	for i := 0; i < len(words); i += 2 {
		n, err := strconv.Atoi(words[i+1])
		if err != nil || n <= 0 {
			return Reference{}, false
		}
		switch words[i] {
		case "mandala", "m":
			ref.Mandala = n
		case "sukta", "s":
			ref.Sukta = n
		case "rik", "r", "verse":
			ref.Rik = n
		default:
			return Reference{}, false
		}
	}

	if ref.Mandala == 0 || ref.Sukta == 0 {
		return Reference{}, false
	}
	return ref, true
}
