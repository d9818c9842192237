package contracts

// ContributionEntry is one row of the visibility-contribution ranking
// produced over the active/warning set. 우선순위 판단용, 상태는 안 바꾼다.
type ContributionEntry struct {
	CandidateID     int64   `json:"candidate_id"`
	ProductID       string  `json:"product_id"`
	Keyword         string  `json:"keyword"`
	RawScore        float64 `json:"raw_score"`
	NormalizedScore float64 `json:"normalized_score"`
	Rank            int     `json:"rank"`
}
