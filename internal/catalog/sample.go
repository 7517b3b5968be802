package catalog

import "reelcms/pkg/models"

// SampleCatalog builds the read-only demo catalog shown to visitors while
// the manifest has nothing public. It only reads the media directory and
// is never persisted.
func SampleCatalog(s *Scanner) ([]models.Work, error) {
	works, err := s.Scan()
	if err != nil {
		return nil, err
	}
	for i := range works {
		works[i].Published = models.Published
	}
	return works, nil
}
