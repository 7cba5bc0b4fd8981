package domain

import (
	"fmt"
	"strings"
)

// serviceNotes expands well-known service tags into natural language so the
// embedding captures intent ("late-night meals") and not just the tag.
var serviceNotes = map[string]string{
	"24 Hours":            "It operates 24 hours, ideal for late-night meals.",
	"Drive-Thru":          "Drive-Thru is available for quick service from your vehicle.",
	"McCafe":              "You can enjoy coffee and desserts from McCafe.",
	"WiFi":                "Free WiFi is provided for customers.",
	"Birthday Party":      "Birthday party packages are available for celebrations.",
	"Electric Vehicle":    "Electric vehicle charging stations are available.",
	"Surau":               "There is a Surau (prayer room) on-site.",
	"Digital Order Kiosk": "It features a digital kiosk for self-service ordering.",
	"Cashless Facility":   "Cashless payments are accepted.",
	"Dessert Center":      "You can get ice cream and desserts at the Dessert Center.",
	"Breakfast":           "Breakfast items are available during morning hours.",
	"McDelivery":          "Delivery service is available via McDelivery.",
}

// Summary renders the outlet as the natural-language text that gets embedded.
// The same text is fed to the answer synthesizer as context, so query and
// corpus stay in one semantic space.
func (o Outlet) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a McDonald's restaurant located at %s.", o.Name, o.Address)

	if len(o.Services) > 0 {
		fmt.Fprintf(&b, " It offers the following services: %s.", strings.Join(o.Services, ", "))
	}
	for _, s := range o.Services {
		if note, ok := serviceNotes[s]; ok {
			b.WriteByte(' ')
			b.WriteString(note)
		}
	}
	return b.String()
}
