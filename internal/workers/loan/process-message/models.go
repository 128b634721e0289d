// internal/workers/loan/process-message/models.go
package processmessage

import "loan-advisor/internal/models"

// Input mirrors the POST /chat body so a process can drive the same turn.
type Input struct {
	CustomerID    string                 `json:"customer_id"`
	ApplicationID string                 `json:"application_id,omitempty"`
	Message       string                 `json:"message"`
	DataUpdate    map[string]interface{} `json:"data_update,omitempty"`
}

type Output struct {
	ApplicationID  string        `json:"applicationId"`
	AgentName      string        `json:"agentName"`
	Reply          string        `json:"reply"`
	Status         models.Status `json:"loanStatus"`
	ActionRequired models.Action `json:"actionRequired,omitempty"`
	Terminal       bool          `json:"terminal"`
}
