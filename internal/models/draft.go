package models

// Draft is a persisted compose buffer as the backend stores it. The ID is
// assigned by the backend on first save and is absent beforehand. Recipient
// fields are wire strings (comma-delimited addresses).
type Draft struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"account_id"`
	ToEmail     string            `json:"to_email"`
	CCEmail     string            `json:"cc_email"`
	BCCEmail    string            `json:"bcc_email"`
	Subject     string            `json:"subject"`
	BodyHTML    string            `json:"body_html"`
	Attachments []DraftAttachment `json:"attachments,omitempty"`
}

// DraftAttachment is attachment metadata as persisted with a draft. Binary
// payloads stay local to the compose session until send.
type DraftAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// DraftPayload is the request body for creating or updating a draft.
type DraftPayload struct {
	ToEmail     *string           `json:"to_email"`
	CCEmail     *string           `json:"cc_email"`
	BCCEmail    *string           `json:"bcc_email"`
	Subject     *string           `json:"subject"`
	BodyHTML    *string           `json:"body_html"`
	Attachments []DraftAttachment `json:"attachments"`
}

// DraftList is the backend's response shape for listing an account's drafts.
type DraftList struct {
	Drafts []Draft `json:"drafts"`
}
