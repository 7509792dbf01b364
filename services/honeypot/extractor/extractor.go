// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extractor pulls scammer identifiers out of message text.
package extractor

import (
	"log/slog"
	"regexp"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

// Memory keys used by the conversation prompt.
const (
	KeyUpiIDs       = "upi_ids"
	KeyURLs         = "urls"
	KeyIFSCCodes    = "ifsc_codes"
	KeyPhoneNumbers = "phone_numbers"
	KeyBankAccounts = "bank_accounts"
	KeyEmails       = "emails"
)

var (
	upiRegex   = regexp.MustCompile(`\b[a-zA-Z0-9.\-_]{2,}@[a-zA-Z]{2,}\b`)
	urlRegex   = regexp.MustCompile(`https?://[^\s]+`)
	ifscRegex  = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
	phoneRegex = regexp.MustCompile(`\b[6-9]\d{9}\b`)
	bankRegex  = regexp.MustCompile(`\b\d{9,18}\b`)
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
)

// Entities is the result of one extraction. Every list is deduplicated in
// first-seen order.
type Entities struct {
	UpiIDs       []string
	URLs         []string
	IFSCCodes    []string
	PhoneNumbers []string
	BankAccounts []string
	Emails       []string
}

// Extract finds all identifiers in text.
//
// # Description
//
// Bank account candidates are 9 to 18 digit runs; a candidate equal to an
// extracted phone number is dropped so mobile numbers are not double
// counted.
//
// # Examples
//
//	e := extractor.Extract("Pay to fraud@ybl or call 9876543210")
//	// e.UpiIDs == ["fraud@ybl"], e.PhoneNumbers == ["9876543210"]
func Extract(text string) Entities {
	if text == "" {
		return Entities{}
	}

	e := Entities{
		UpiIDs:       findUnique(upiRegex, text),
		URLs:         findUnique(urlRegex, text),
		IFSCCodes:    findUnique(ifscRegex, text),
		PhoneNumbers: findUnique(phoneRegex, text),
		Emails:       findUnique(emailRegex, text),
	}

	phones := make(map[string]struct{}, len(e.PhoneNumbers))
	for _, p := range e.PhoneNumbers {
		phones[p] = struct{}{}
	}
	for _, acc := range findUnique(bankRegex, text) {
		if _, isPhone := phones[acc]; !isPhone {
			e.BankAccounts = append(e.BankAccounts, acc)
		}
	}

	if n := e.Count(); n > 0 {
		slog.Info("Extracted entities", "count", n, "entities", e.AsMap())
	}
	return e
}

// Count is the total number of identifiers.
func (e Entities) Count() int {
	return len(e.UpiIDs) + len(e.URLs) + len(e.IFSCCodes) + len(e.PhoneNumbers) +
		len(e.BankAccounts) + len(e.Emails)
}

// Empty reports whether nothing was found.
func (e Entities) Empty() bool { return e.Count() == 0 }

// HasCritical reports whether a payment handle, link or account was found.
func (e Entities) HasCritical() bool {
	return len(e.UpiIDs) > 0 || len(e.URLs) > 0 || len(e.BankAccounts) > 0
}

// AsMap returns the non-empty categories keyed by memory key.
func (e Entities) AsMap() map[string][]string {
	m := map[string][]string{}
	add := func(k string, v []string) {
		if len(v) > 0 {
			m[k] = v
		}
	}
	add(KeyUpiIDs, e.UpiIDs)
	add(KeyURLs, e.URLs)
	add(KeyIFSCCodes, e.IFSCCodes)
	add(KeyPhoneNumbers, e.PhoneNumbers)
	add(KeyBankAccounts, e.BankAccounts)
	add(KeyEmails, e.Emails)
	return m
}

// ApplyTo merges the reportable categories into intel.
func (e Entities) ApplyTo(intel *datatypes.ExtractedIntelligence) {
	intel.UpiIDs = datatypes.MergeUnique(intel.UpiIDs, e.UpiIDs...)
	intel.PhishingLinks = datatypes.MergeUnique(intel.PhishingLinks, e.URLs...)
	intel.PhoneNumbers = datatypes.MergeUnique(intel.PhoneNumbers, e.PhoneNumbers...)
	intel.BankAccounts = datatypes.MergeUnique(intel.BankAccounts, e.BankAccounts...)
}

// MergeMemory merges every non-empty category into memory.
func (e Entities) MergeMemory(memory map[string][]string) {
	for k, v := range e.AsMap() {
		memory[k] = datatypes.MergeUnique(memory[k], v...)
	}
}

func findUnique(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	return datatypes.MergeUnique(nil, matches...)
}
