// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import "unicode/utf8"

// Language is the answer language selected for a question.
type Language int

const (
	// LanguageEnglish is used for questions made only of 7-bit ASCII.
	LanguageEnglish Language = iota
	// LanguageQuestion means "answer in the language the question is
	// written in". Selected when any rune is outside 7-bit ASCII.
	LanguageQuestion
)

const (
	apologyVietnamese = "Xin lỗi, không thể tạo câu trả lời."
	apologyEnglish    = "Sorry, I could not generate an answer."
)

// DetectLanguage applies the ASCII heuristic: any rune above 127 selects the
// question's own language, otherwise English.
//
// # Limitations
//
//   - Accented Latin text (French, German, ...) is treated the same as
//     Vietnamese. The heuristic is kept literal on purpose.
func DetectLanguage(question string) Language {
	for i := 0; i < len(question); i++ {
		if question[i] >= utf8.RuneSelf {
			return LanguageQuestion
		}
	}
	return LanguageEnglish
}

// Instruction renders the language rule for a prompt.
func (l Language) Instruction() string {
	if l == LanguageQuestion {
		return "the same language as the question"
	}
	return "English"
}

// Apology returns the fixed apology used when generation fails upstream.
// Non-ASCII questions get the Vietnamese apology since Vietnamese is the
// dominant non-English language of the deployment.
func (l Language) Apology() string {
	if l == LanguageQuestion {
		return apologyVietnamese
	}
	return apologyEnglish
}
