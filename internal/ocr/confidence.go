package ocr

import (
	"regexp"
	"strings"
)

// Keyword list mirrored from the worker's orientation scoring; presence
// indicates an upright enrollment form. Matching is substring-based to
// stay consistent with the worker.
var formKeywords = []string{"student", "id", "name", "nickname", "school", "course", "mobile", "date of birth", "teacher"}

// student/id carry double weight; they appear on every form variant.
var criticalKeywords = map[string]struct{}{
	"student": {},
	"id":      {},
}

// MinKeywordMatches is the weighted score below which a worker pass is
// retried in exhaustive mode.
const MinKeywordMatches = 2

var reStudentIDToken = regexp.MustCompile(`20\d{7,8}`)

// FormScore returns the weighted count of form keywords present in txt.
func FormScore(txt string) int {
	txtL := strings.ToLower(txt)
	score := 0
	for _, k := range formKeywords {
		if strings.Contains(txtL, k) {
			if _, critical := criticalKeywords[k]; critical {
				score += 2
			} else {
				score++
			}
		}
	}
	return score
}

// heuristicConfidence maps decoded-text characteristics onto 0..1.
func heuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	kw := FormScore(txt)
	if kw >= MinKeywordMatches {
		score += 0.2
	}
	if kw >= 5 {
		score += 0.15
	}
	if reStudentIDToken.MatchString(txt) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// BlendConfidence combines the provider's mean line confidence with the
// text heuristic; the provider is weighted higher when it reported one.
func BlendConfidence(ocrConf, heurConf float32) float32 {
	var conf float32
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	} else {
		conf = heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
