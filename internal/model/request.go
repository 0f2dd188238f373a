package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type DeleteRecordRequest struct {
	RecordID string `json:"record_id"`
	Confirm  bool   `json:"confirm"`
}

type DeleteRecordResponse struct {
	Confirmed bool    `json:"confirmed"`
	Prompt    string  `json:"prompt,omitempty"`
	Ticket    *Ticket `json:"ticket,omitempty"`
}

type TriggerResponse struct {
	Applied bool `json:"applied"`
}

type ListsData struct {
	Items []string `json:"items"`
}

type RecordsData struct {
	Items   []Record `json:"items"`
	Pending *Ticket  `json:"pending,omitempty"`
}

type DeletionQuery struct {
	Resource string
	Phase    string
	ActorID  string
	Page     int
	Limit    int
}

type DeletionListData struct {
	Items []DeletionEntry `json:"items"`
}
