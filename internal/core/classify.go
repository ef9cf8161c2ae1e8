package core

import "strings"

// HardwareKeywords marks a product as hardware when its lower-cased name
// contains one of them anywhere, including inside longer words.
var HardwareKeywords = map[string]struct{}{
	"server":       {},
	"dell":         {},
	"hp":           {},
	"lenovo":       {},
	"laptop":       {},
	"desktop":      {},
	"router":       {},
	"switch":       {},
	"firewall":     {},
	"ap":           {},
	"access point": {},
}

// ClassifyProduct derives the product type from its name.
func ClassifyProduct(productName string) ProductType {
	name := strings.ToLower(productName)
	for kw := range HardwareKeywords {
		if strings.Contains(name, kw) {
			return ProductHardware
		}
	}
	return ProductSoftware
}
