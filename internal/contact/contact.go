package contact

import "strings"

// Contact is a single recipient: an address plus an optional display name
// used only for rendering.
type Contact struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name,omitempty"`
}

// ToWireString joins contact addresses with ", " into the comma-delimited
// form the backend stores. Display names are not part of the wire format and
// are dropped. An empty list yields an empty string.
func ToWireString(contacts []Contact) string {
	if len(contacts) == 0 {
		return ""
	}
	addresses := make([]string, 0, len(contacts))
	for _, c := range contacts {
		addresses = append(addresses, c.Address)
	}
	return strings.Join(addresses, ", ")
}

// FromWireString splits a comma-delimited address string into contacts.
// Whitespace around addresses is trimmed and empty tokens are dropped; order
// is preserved and duplicates are kept. Display names are never recovered:
// FromWireString(ToWireString(xs)) yields the same addresses as xs, but with
// empty display names.
func FromWireString(text string) []Contact {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var contacts []Contact
	for _, token := range strings.Split(text, ",") {
		address := strings.TrimSpace(token)
		if address == "" {
			continue
		}
		contacts = append(contacts, Contact{Address: address})
	}
	return contacts
}
