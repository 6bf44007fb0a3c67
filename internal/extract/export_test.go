package extract

import "github.com/ppiankov/veracity/internal/model"

// Parse returns only the markers of text
func Parse(text string) (*model.Markers, error) {
	doc, err := Analyze(text)
	if err != nil {
		return nil, err
	}
	return doc.Markers, nil
}
