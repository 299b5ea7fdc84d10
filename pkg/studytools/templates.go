package studytools

const summaryPrompt = `Please provide an expanded summary of the following text, ensuring that
all key points, details, and significant aspects are included for a thorough understanding.
TEXT: %s
SUMMARY:`

const refinePrompt = `Your job is to produce a concise final summary in bullet points which covers the key points of the text.
We have provided an existing summary up to a certain point:
%s

Refine the existing summary with the additional text delimited by triple backquotes.
` + "```%s```" + `
BULLET POINT SUMMARY:`

const mcqPrompt = `Based on the following text, generate %d multiple-choice questions (MCQs) along with the correct answers.
The questions should cover key concepts from the text and be in the following format:

Please respond in this JSON format and starting with ` + "`[`" + `. Do not include any labels, titles, or prefixes
(e.g., 'json'). Only provide the JSON response. The JSON response should look like this:

[
    {
        "questionText": "[The question text]",
        "answers": [
            {"text": "[Option 1 text]", "isCorrect": true},
            {"text": "[Option 2 text]", "isCorrect": false},
            {"text": "[Option 3 text]", "isCorrect": false},
            {"text": "[Option 4 text]", "isCorrect": false}
        ]
    }
]

TEXT: %s
JSON_RESPONSE:`

const cardPrompt = `Based on the following text, generate %d study cards.
Each study card should contain a concise question and a detailed answer summarizing key concepts from the text.

Please respond in this JSON format and starting with ` + "`[`" + `. Do not include any labels, titles, or prefixes
(e.g., 'json'). Only provide the JSON response. The JSON response should look like this:

[
    {
        "question": "[The question text]",
        "answer": "[The answer text]"
    }
]

TEXT: %s
JSON_RESPONSE:`
