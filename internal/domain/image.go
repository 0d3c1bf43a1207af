package domain

// TargetImage is a stored face image a session can be created from or
// updated to.
type TargetImage struct {
	PublicID  string `json:"publicId"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	CreatedAt string `json:"createdAt"`
}
