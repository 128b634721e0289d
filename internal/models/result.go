// internal/models/result.go
package models

// Action tells the caller which input the conversation is waiting for.
type Action string

const (
	ActionNone              Action = ""
	ActionCollectName       Action = "collect_name"
	ActionCollectLoanAmount Action = "collect_loan_amount"
	ActionCollectTenure     Action = "collect_tenure"
	ActionChooseTenure      Action = "choose_tenure"
	ActionStartKYC          Action = "start_kyc"
	ActionCollectPAN        Action = "collect_pan"
	ActionCollectAadhar     Action = "collect_aadhar"
	ActionCorrectPAN        Action = "correct_pan"
	ActionCorrectAadhar     Action = "correct_aadhar"
	ActionCorrectPANAadhar  Action = "correct_pan_aadhar"
	ActionCollectSalary     Action = "collect_salary"
	ActionConfirmSalary     Action = "confirm_salary"
)

// HandlerResult is what a stage handler returns for one turn.
type HandlerResult struct {
	Handler string
	Message string
	// Next, when set, asks the orchestrator to run that stage immediately.
	Next    Status
	Action  Action
	Updates []Update
}

// HasNext reports whether the result requests a chained handler.
func (r HandlerResult) HasNext() bool {
	return r.Next != ""
}

// ChatRequest is the transport-independent input of one turn.
type ChatRequest struct {
	CustomerID    string                 `json:"customer_id,omitempty"`
	Message       string                 `json:"message"`
	ApplicationID string                 `json:"application_id,omitempty"`
	DataUpdate    map[string]interface{} `json:"data_update,omitempty"`
}

// ChatResponse is the transport-independent output of one turn.
type ChatResponse struct {
	ApplicationID  string `json:"application_id"`
	AgentName      string `json:"agent_name"`
	Message        string `json:"message"`
	Status         Status `json:"status"`
	ActionRequired Action `json:"action_required,omitempty"`
}
