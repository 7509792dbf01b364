// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detector

import "strings"

// Keyword is a weighted scam indicator matched as a lowercase substring.
type Keyword struct {
	Phrase string
	Weight int
}

// ScamKeywords is the weighted indicator table, grouped by tactic. Order is
// the order matched keywords are reported in.
var ScamKeywords = []Keyword{
	// Authentication and verification
	{"otp", 5},
	{"one time password", 5},
	{"kyc", 4},
	{"verify your account", 4},
	{"verify immediately", 5},
	{"verification required", 4},

	// Urgency and threats
	{"urgent", 3},
	{"immediately", 3},
	{"account blocked", 5},
	{"account suspended", 5},
	{"account will be blocked", 5},
	{"limited time", 3},
	{"expires today", 4},
	{"last chance", 4},

	// Authority impersonation
	{"bank officer", 4},
	{"customer care", 3},
	{"government official", 4},
	{"tax department", 4},
	{"police", 4},

	// Financial lures
	{"refund", 3},
	{"cashback", 2},
	{"prize", 3},
	{"lottery", 4},
	{"won", 2},
	{"claim", 2},

	// Malicious actions
	{"click the link", 5},
	{"install app", 5},
	{"anydesk", 5},
	{"teamviewer", 5},
	{"remote access", 5},
	{"screen share", 4},
	{"download", 3},

	// Payment and banking
	{"upi", 3},
	{"bank account", 2},
	{"credit card", 2},
	{"debit card", 2},
	{"cvv", 5},
	{"pin", 4},
	{"password", 4},
	{"net banking", 3},
}

// HeuristicResult is the keyword score of one message.
type HeuristicResult struct {
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// HeuristicScore sums the weights of every keyword contained in text.
//
// Matching is plain substring search, so "pin" also matches "shopping".
func HeuristicScore(text string) HeuristicResult {
	lower := strings.ToLower(text)
	res := HeuristicResult{MatchedKeywords: []string{}}
	for _, kw := range ScamKeywords {
		if strings.Contains(lower, kw.Phrase) {
			res.Score += kw.Weight
			res.MatchedKeywords = append(res.MatchedKeywords, kw.Phrase)
		}
	}
	return res
}
