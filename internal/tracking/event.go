package tracking

import (
	"encoding/json"
	"time"

	"github.com/brewline/brewline-backend/pkg/enums"
)

// StatusEvent is the message pushed to subscribers after a committed
// transition.
type StatusEvent struct {
	OrderID int64             `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
	Time    time.Time         `json:"time"`
}

// Encode renders the wire form of the event.
func (e StatusEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeStatusEvent parses the wire form produced by Encode.
func DecodeStatusEvent(data []byte) (StatusEvent, error) {
	var event StatusEvent
	err := json.Unmarshal(data, &event)
	return event, err
}
