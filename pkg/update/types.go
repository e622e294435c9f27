package update

import (
	"math"
	"path"
	"strings"
	"time"
)

const earthRadiusKm = 6371.0

// User identifies a WhatsApp user. Name is empty on status notifications.
type User struct {
	WaID string
	Name string
}

// Metadata identifies the business phone number that received the update.
type Metadata struct {
	DisplayPhoneNumber string
	PhoneNumberID      string
}

// Media describes an inbound media object. Download it through the media endpoints of
// the client using ID.
type Media struct {
	ID       string
	MimeType string
	SHA256   string
	FileSize int64
	Caption  string
	Filename string
	// Voice is set for audio recorded as a voice note.
	Voice bool
	// Animated is set for animated stickers.
	Animated bool
}

// Extension returns the file extension (with the leading dot) guessed from the filename
// or, failing that, the mime subtype.
func (m *Media) Extension() string {
	if m == nil {
		return ""
	}
	if ext := path.Ext(m.Filename); ext != "" {
		return strings.ToLower(ext)
	}
	_, sub, ok := strings.Cut(m.MimeType, "/")
	if !ok || sub == "" {
		return ""
	}
	sub, _, _ = strings.Cut(sub, ";")
	return "." + strings.ToLower(strings.TrimSpace(sub))
}

// Reaction is a reaction to a message. Emoji is empty when the reaction was removed.
type Reaction struct {
	MessageID string
	Emoji     string
}

// IsRemoved reports whether the user removed the reaction.
func (r *Reaction) IsRemoved() bool {
	return r.Emoji == ""
}

// Location is a shared location.
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
	URL       string
}

// IsCurrentLocation reports whether the user shared their live position rather than a
// picked place.
func (l *Location) IsCurrentLocation() bool {
	return l.Name == "" && l.Address == "" && l.URL == ""
}

// InRadius reports whether the location lies within radiusKm kilometers of (lat, lon)
// using the haversine distance.
func (l *Location) InRadius(lat, lon, radiusKm float64) bool {
	return l.DistanceKm(lat, lon) <= radiusKm
}

// DistanceKm returns the great-circle distance to (lat, lon).
func (l *Location) DistanceKm(lat, lon float64) float64 {
	lat1, lon1 := radians(l.Latitude), radians(l.Longitude)
	lat2, lon2 := radians(lat), radians(lon)
	h := math.Pow(math.Sin((lat2-lat1)/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin((lon2-lon1)/2), 2)
	return 2 * math.Asin(math.Sqrt(h)) * earthRadiusKm
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Contact is a contact card shared in a contacts message.
type Contact struct {
	FormattedName string
	FirstName     string
	LastName      string
	Birthday      string
	Organization  string
	Phones        []ContactPhone
	Emails        []string
	URLs          []string
}

// ContactPhone is a phone entry of a contact card. WaID is set when the number has a
// WhatsApp account.
type ContactPhone struct {
	Phone string
	Type  string
	WaID  string
}

// Product is one line of an order.
type Product struct {
	SKU      string
	Quantity int
	Price    float64
	Currency string
}

// TotalPrice is Quantity * Price.
func (p Product) TotalPrice() float64 {
	return float64(p.Quantity) * p.Price
}

// Order is a cart sent from a catalog.
type Order struct {
	CatalogID string
	Text      string
	Products  []Product
}

// TotalPrice sums the total price of every product line.
func (o *Order) TotalPrice() float64 {
	var total float64
	for _, p := range o.Products {
		total += p.TotalPrice()
	}
	return total
}

// System describes a customer number or identity change.
type System struct {
	Type     string
	Body     string
	Identity string
	WaID     string
	NewWaID  string
}

// ReferredProduct is the catalog product a message asks about.
type ReferredProduct struct {
	CatalogID string
	SKU       string
}

// ReplyToMessage references the message an update replies to. It carries identifiers
// only and never the full replied message.
type ReplyToMessage struct {
	MessageID       string
	FromUserID      string
	ReferredProduct *ReferredProduct
}

// Conversation is the billing conversation a status belongs to.
type Conversation struct {
	ID         string
	Category   ConversationCategory
	Expiration *time.Time
}

// StatusError is the error reported with a failed status.
type StatusError struct {
	Code    int
	Title   string
	Message string
	Details string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Title
}
