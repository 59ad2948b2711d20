package portal

// apiRecord is one citizen-request object from the portal API.
type apiRecord struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	Status        string  `json:"status"`
	RequesterName string  `json:"requester_name"`
	Contact       string  `json:"contact"`
	RequestType   string  `json:"request_type"`
	Region        string  `json:"region"`
	Category      string  `json:"category"`
	Organization  string  `json:"organization"`
	Overdue       bool    `json:"overdue"`
	Deadline      *string `json:"deadline"`
	CreatedAt     string  `json:"created_at"`
}
