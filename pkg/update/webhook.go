package update

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// The structures below mirror the webhook payload sent by Meta's WhatsApp Cloud API.
// Optional objects are pointers so the parser can tell "absent" from "empty".

type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Time    epoch           `json:"time"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Value *json.RawMessage `json:"value"`
	Field string           `json:"field"`
}

type webhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         *wireMetadata    `json:"metadata"`
	Contacts         []wireContact    `json:"contacts"`
	Messages         []inboundMessage `json:"messages"`
	Statuses         []wireStatus     `json:"statuses"`
	Errors           []wireError      `json:"errors"`
}

type templateStatusValue struct {
	Event      string      `json:"event"`
	TemplateID json.Number `json:"message_template_id"`
	Name       string      `json:"message_template_name"`
	Language   string      `json:"message_template_language"`
	Reason     string      `json:"reason"`
}

type wireMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type wireContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type inboundMessage struct {
	From        string           `json:"from"`
	ID          string           `json:"id"`
	Timestamp   epoch            `json:"timestamp"`
	Type        string           `json:"type"`
	Context     *wireContext     `json:"context"`
	Text        *wireText        `json:"text"`
	Image       *wireMedia       `json:"image"`
	Video       *wireMedia       `json:"video"`
	Audio       *wireMedia       `json:"audio"`
	Document    *wireMedia       `json:"document"`
	Sticker     *wireMedia       `json:"sticker"`
	Reaction    *wireReaction    `json:"reaction"`
	Location    *wireLocation    `json:"location"`
	Contacts    []wireCard       `json:"contacts"`
	Order       *wireOrder       `json:"order"`
	System      *wireSystem      `json:"system"`
	Interactive *wireInteractive `json:"interactive"`
	Button      *wireButton      `json:"button"`
	Errors      []wireError      `json:"errors"`
}

type wireContext struct {
	From                string               `json:"from"`
	ID                  string               `json:"id"`
	Forwarded           bool                 `json:"forwarded"`
	FrequentlyForwarded bool                 `json:"frequently_forwarded"`
	ReferredProduct     *wireReferredProduct `json:"referred_product"`
}

type wireReferredProduct struct {
	CatalogID         string `json:"catalog_id"`
	ProductRetailerID string `json:"product_retailer_id"`
}

type wireText struct {
	Body string `json:"body"`
}

type wireMedia struct {
	ID       string      `json:"id"`
	MimeType string      `json:"mime_type"`
	Sha256   string      `json:"sha256"`
	FileSize json.Number `json:"file_size"`
	Caption  string      `json:"caption"`
	Filename string      `json:"filename"`
	Voice    bool        `json:"voice"`
	Animated bool        `json:"animated"`
}

type wireReaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type wireLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	URL       string   `json:"url"`
}

type wireCard struct {
	Name struct {
		FormattedName string `json:"formatted_name"`
		FirstName     string `json:"first_name"`
		LastName      string `json:"last_name"`
	} `json:"name"`
	Birthday string `json:"birthday"`
	Org      struct {
		Company string `json:"company"`
	} `json:"org"`
	Phones []struct {
		Phone string `json:"phone"`
		Type  string `json:"type"`
		WaID  string `json:"wa_id"`
	} `json:"phones"`
	Emails []struct {
		Email string `json:"email"`
	} `json:"emails"`
	URLs []struct {
		URL string `json:"url"`
	} `json:"urls"`
}

type wireOrder struct {
	CatalogID    string `json:"catalog_id"`
	Text         string `json:"text"`
	ProductItems []struct {
		ProductRetailerID string      `json:"product_retailer_id"`
		Quantity          json.Number `json:"quantity"`
		ItemPrice         json.Number `json:"item_price"`
		Currency          string      `json:"currency"`
	} `json:"product_items"`
}

type wireSystem struct {
	Type     string `json:"type"`
	Body     string `json:"body"`
	Identity string `json:"identity"`
	Customer string `json:"customer"`
	WaID     string `json:"wa_id"`
	NewWaID  string `json:"new_wa_id"`
}

type wireInteractive struct {
	Type        string         `json:"type"`
	ButtonReply *wireReply     `json:"button_reply"`
	ListReply   *wireReply     `json:"list_reply"`
	NfmReply    *wireFlowReply `json:"nfm_reply"`
}

type wireReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type wireFlowReply struct {
	ResponseJSON string `json:"response_json"`
	Body         string `json:"body"`
	Name         string `json:"name"`
}

type wireButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type wireStatus struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Timestamp    epoch             `json:"timestamp"`
	RecipientID  string            `json:"recipient_id"`
	Conversation *wireConversation `json:"conversation"`
	Pricing      *struct {
		PricingModel string `json:"pricing_model"`
	} `json:"pricing"`
	Errors []wireError `json:"errors"`
}

type wireConversation struct {
	ID     string `json:"id"`
	Origin struct {
		Type string `json:"type"`
	} `json:"origin"`
	ExpirationTimestamp epoch `json:"expiration_timestamp"`
}

type wireError struct {
	Code      int    `json:"code"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ErrorData struct {
		Details string `json:"details"`
	} `json:"error_data"`
}

// epoch is a unix timestamp in seconds. Meta sends it as a string on messages and
// statuses and as a number on entries; both are accepted.
type epoch struct {
	seconds int64
	set     bool
}

func (e *epoch) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch timestamp %q: %w", string(data), err)
	}
	e.seconds, e.set = n, true
	return nil
}
