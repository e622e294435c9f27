package filters

import (
	"github.com/mamadbah2/wacloud/pkg/update"
)

// Location matches every location message.
func Location(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeLocation)
	return ok && m.Location != nil
}

// CurrentLocation matches live positions as opposed to picked places.
func CurrentLocation(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeLocation)
	return ok && m.Location != nil && m.Location.IsCurrentLocation()
}

// InRadius matches locations within radiusKm kilometers of (lat, lon).
func InRadius(lat, lon, radiusKm float64) Filter {
	return func(u update.Update) bool {
		m, ok := messageOfType(u, update.MessageTypeLocation)
		return ok && m.Location != nil && m.Location.InRadius(lat, lon, radiusKm)
	}
}

// Reaction matches added and removed reactions.
func Reaction(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeReaction)
	return ok && m.Reaction != nil
}

func ReactionAdded(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeReaction)
	return ok && m.Reaction != nil && !m.Reaction.IsRemoved()
}

func ReactionRemoved(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeReaction)
	return ok && m.Reaction != nil && m.Reaction.IsRemoved()
}

// ReactionEmojis matches reactions with one of the emojis.
func ReactionEmojis(emojis ...string) Filter {
	return func(u update.Update) bool {
		m, ok := messageOfType(u, update.MessageTypeReaction)
		if !ok || m.Reaction == nil {
			return false
		}
		for _, e := range emojis {
			if m.Reaction.Emoji == e {
				return true
			}
		}
		return false
	}
}

// Contacts matches every contacts message.
func Contacts(u update.Update) bool {
	_, ok := messageOfType(u, update.MessageTypeContacts)
	return ok
}

// ContactsHaveWhatsApp matches contacts messages where at least one phone has a
// WhatsApp account.
func ContactsHaveWhatsApp(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeContacts)
	if !ok {
		return false
	}
	for _, c := range m.Contacts {
		for _, p := range c.Phones {
			if p.WaID != "" {
				return true
			}
		}
	}
	return false
}

// ContactsCount matches contacts messages carrying between min and max cards.
func ContactsCount(min, max int) Filter {
	return func(u update.Update) bool {
		m, ok := messageOfType(u, update.MessageTypeContacts)
		return ok && len(m.Contacts) >= min && len(m.Contacts) <= max
	}
}

// ContactsPhones matches contacts messages containing one of the phone numbers. Only
// digits are compared.
func ContactsPhones(phones ...string) Filter {
	wanted := make(map[string]struct{}, len(phones))
	for _, p := range phones {
		wanted[digits(p)] = struct{}{}
	}
	return func(u update.Update) bool {
		m, ok := messageOfType(u, update.MessageTypeContacts)
		if !ok {
			return false
		}
		for _, c := range m.Contacts {
			for _, p := range c.Phones {
				if _, found := wanted[digits(p.Phone)]; found {
					return true
				}
			}
		}
		return false
	}
}

// Order matches every order message.
func Order(u update.Update) bool {
	m, ok := messageOfType(u, update.MessageTypeOrder)
	return ok && m.Order != nil
}

// OrderPrice matches orders whose total price is within [min, max].
func OrderPrice(min, max float64) Filter {
	return func(u update.Update) bool {
		m, ok := messageOfType(u, update.MessageTypeOrder)
		if !ok || m.Order == nil {
			return false
		}
		total := m.Order.TotalPrice()
		return total >= min && total <= max
	}
}

// OrderCount matches orders with between min and max product lines.
func OrderCount(min, max int) Filter {
	return func(u update.Update) bool {
		m, ok := messageOfType(u, update.MessageTypeOrder)
		return ok && m.Order != nil && len(m.Order.Products) >= min && len(m.Order.Products) <= max
	}
}

// OrderHasProduct matches orders containing one of the SKUs.
func OrderHasProduct(skus ...string) Filter {
	return func(u update.Update) bool {
		m, ok := messageOfType(u, update.MessageTypeOrder)
		if !ok || m.Order == nil {
			return false
		}
		for _, p := range m.Order.Products {
			for _, sku := range skus {
				if p.SKU == sku {
					return true
				}
			}
		}
		return false
	}
}

// Unsupported matches messages of a type this library does not model.
func Unsupported(u update.Update) bool {
	_, ok := messageOfType(u, update.MessageTypeUnsupported)
	return ok
}
