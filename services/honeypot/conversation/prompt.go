// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation drives the victim persona: it picks the
// conversation stage, builds the persona prompt and cleans model replies.
package conversation

import (
	"strings"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/extractor"
)

// historyWindow is how many prior messages the persona sees.
const historyWindow = 5

var stageInstructions = map[string]string{
	datatypes.StageTrust: `
You are an ordinary person receiving this message.
You are slightly confused but cooperative and trusting.
You should NOT sound smart, tech-savvy, or suspicious.
Ask simple questions like a normal person would.
Show concern if threatened, but be willing to cooperate.
Keep responses natural and brief (1-2 sentences).
`,
	datatypes.StageExtract: `
You are now engaged and following their instructions.
Show you're taking them seriously and want to comply.
Politely ask for step-by-step details.
Focus on: payment methods, links, account details, contact info.
Act like you're having trouble understanding technical terms.
Do NOT confront, accuse, or express doubt.
Keep responses brief and cooperative.
`,
	datatypes.StageStall: `
You are trying to comply but facing difficulties.
Ask for clarification and confirmation of details.
Repeat information back to "make sure you got it right".
Express mild confusion or technical difficulties.
Say you need a moment to complete their requests.
Keep extracting any additional details they provide.
`,
}

const criticalRules = `You are roleplaying as a real human victim in a text conversation.

CRITICAL RULES:
- NEVER reveal you are an AI or chatbot
- NEVER warn them about scams or express suspicion
- NEVER refuse to engage or say "I can't help with that"
- NEVER give fake personal data or make up information
- Sound casual, natural, and human (use simple language)
- Keep responses SHORT (1-2 sentences maximum)
- Show emotion when appropriate (worry, confusion, urgency)
- Make small grammar mistakes occasionally (but stay readable)`

// knownInfoLabels is the order and wording of the collected-information
// lines.
var knownInfoLabels = []struct {
	key   string
	label string
}{
	{extractor.KeyUpiIDs, "UPI IDs"},
	{extractor.KeyURLs, "Links"},
	{extractor.KeyPhoneNumbers, "Phone numbers"},
	{extractor.KeyBankAccounts, "Account numbers"},
}

// BuildPrompt renders the persona prompt.
//
// # Inputs
//
//   - current: The scammer's latest message.
//   - history: Prior messages, excluding current. Only the last five are used.
//   - stage: One of the datatypes.Stage* constants.
//   - memory: Identifiers collected so far, keyed by extractor.Key*.
//
// # Examples
//
//	prompt := conversation.BuildPrompt(msg.Text, session.ConversationHistory[:n-1],
//	    session.Stage, session.Memory)
func BuildPrompt(current string, history []datatypes.Message, stage string, memory map[string][]string) string {
	var b strings.Builder

	b.WriteString(criticalRules)
	b.WriteString("\n\nCurrent Stage: ")
	b.WriteString(strings.ToUpper(stage))
	b.WriteString("\n\n")
	b.WriteString(stageInstructions[stage])
	b.WriteString("\n\n")

	if len(history) > 0 {
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		b.WriteString("Previous conversation:\n")
		for _, m := range history {
			label := "You"
			if m.Sender == datatypes.SenderScammer {
				label = "Them"
			}
			b.WriteString(label + ": " + m.Text + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Their latest message:\n\"")
	b.WriteString(current)
	b.WriteString("\"\n")

	var known []string
	for _, l := range knownInfoLabels {
		if values := memory[l.key]; len(values) > 0 {
			known = append(known, l.label+": "+strings.Join(values, ", "))
		}
	}
	if len(known) > 0 {
		b.WriteString("\n\nInformation collected so far:\n")
		b.WriteString(strings.Join(known, "\n"))
	} else {
		b.WriteString("\nNo information collected yet.")
	}

	b.WriteString("\n\nYour response as the victim (1-2 sentences only):")
	return strings.TrimSpace(b.String())
}

// DetermineStage picks the persona stage.
//
//   - trust: two or fewer messages exchanged.
//   - extract: up to six messages, or nothing critical in the latest
//     extraction.
//   - stall: otherwise.
func DetermineStage(messageCount int, latest extractor.Entities) string {
	switch {
	case messageCount <= 2:
		return datatypes.StageTrust
	case messageCount <= 6 || !latest.HasCritical():
		return datatypes.StageExtract
	default:
		return datatypes.StageStall
	}
}
