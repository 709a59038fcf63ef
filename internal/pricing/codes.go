package pricing

var resourceCodes = map[string]string{
	"LiquidFuel":     "LF",
	"Oxidizer":       "Ox",
	"SolidFuel":      "SF",
	"MonoPropellant": "MP",
	"XenonGas":       "Xe",
}

// ResourceShortCode returns the two-letter code of a resource. Names without
// a fixed code use their first two characters.
func ResourceShortCode(name string) string {
	if code, ok := resourceCodes[name]; ok {
		return code
	}
	r := []rune(name)
	if len(r) < 2 {
		return name
	}
	return string(r[:2])
}

func HasShortCode(name string) bool {
	_, ok := resourceCodes[name]
	return ok
}
