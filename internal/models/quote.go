package models

// Quote — мотивационная цитата для главного экрана.
type Quote struct {
	Text   string `json:"quote"`
	Author string `json:"author"`
}
