package pipeline

import "github.com/shubhsahu23/VoiceBot/internal/domain"

var gibberishReplies = map[domain.Language]string{
	domain.LanguageEnglish: "Sorry, I could not understand that. Could you please say it again?",
	domain.LanguageHindi:   "क्षमा करें, मैं समझ नहीं पाया। कृपया दोबारा कहें।",
	domain.LanguageMarathi: "माफ करा, मला समजले नाही. कृपया पुन्हा सांगा.",
}

var errorReplies = map[domain.Language]string{
	domain.LanguageEnglish: "Sorry, I am having trouble right now. A support agent will contact you shortly.",
	domain.LanguageHindi:   "क्षमा करें, अभी तकनीकी समस्या है। सहायता एजेंट जल्द ही आपसे संपर्क करेगा।",
	domain.LanguageMarathi: "माफ करा, सध्या तांत्रिक अडचण आहे. सहाय्यक एजंट लवकरच तुमच्याशी संपर्क साधेल.",
}

func gibberishReply(lang domain.Language) string {
	if r, ok := gibberishReplies[lang]; ok {
		return r
	}
	return gibberishReplies[domain.LanguageEnglish]
}

func errorReply(lang domain.Language) string {
	if r, ok := errorReplies[lang]; ok {
		return r
	}
	return errorReplies[domain.LanguageEnglish]
}
