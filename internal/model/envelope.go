package model

import "encoding/json"

// PatternCreateCustomer is the routing key / pattern of the create-customer command.
const PatternCreateCustomer = "create_customer"

// CommandEnvelope is the optional wrapper around a queue command: {pattern, data}.
// Publishers may also send the bare creation DTO.
type CommandEnvelope struct {
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data"`
}
