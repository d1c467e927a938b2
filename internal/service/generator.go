package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/llm"
)

const (
	creatorSystemPrompt     = "You are an educational content creator."
	creatorJSONSystemPrompt = "You are an educational content creator. Always respond with valid JSON."
	evaluatorSystemPrompt   = "You are an educational content evaluator."
)

const knowledgeTreePrompt = `Generate a detailed knowledge tree for the topic: %s.

The knowledge tree should have 3-5 main sections, each with 2-4 subsections.

For each section and subsection, provide a title and a brief description.

Format the response as a JSON object with the following structure:
{
    "sections": [
        {
            "title": "Section Title",
            "description": "Section description",
            "subsections": [
                {
                    "title": "Subsection Title",
                    "description": "Subsection description"
                }
            ]
        }
    ]
}`

const lessonPrompt = `Generate clear, concise, and engaging educational content for the following subsection:

Section: %s
Title: %s
Description: %s

The content should be comprehensive and cover all key concepts related to the subsection.
Use examples, analogies, and clear explanations to make the content accessible.
Format the content with appropriate headings, paragraphs, and bullet points.`

const questionsPrompt = `Generate 3 practice questions for the following section:

Title: %s
Description: %s
Difficulty: %s

The questions should cover key concepts from the section and be appropriate for the specified difficulty level.
For each question, provide the question text and the correct answer.

Format the response as a JSON object with the following structure:
{
    "questions": [
        {
            "text": "Question text",
            "difficulty": "%s",
            "correct_answer": "Correct answer"
        }
    ]
}`

const evaluatePrompt = `Evaluate the student's answer to the following question:

Question: %s
Correct Answer: %s
Student's Answer: %s

Determine if the student's answer is correct or incorrect.
Provide constructive feedback on the student's answer.
If the answer is correct, affirm and elaborate.
If the answer is incorrect, guide the student toward the correct understanding without simply giving the answer.

Format the response as a JSON object with the following structure:
{
    "is_correct": true/false,
    "feedback": "Feedback on the student's answer"
}`

// Generator turns prompts into domain content through the configured LLM
// provider. Every failure it returns is already mapped to a 502 AppError.
type Generator struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewGenerator creates a content generator backed by provider.
func NewGenerator(provider llm.Provider, logger *slog.Logger) *Generator {
	return &Generator{provider: provider, logger: logger}
}

// KnowledgeTree asks for a section/subsection outline of topic.
func (g *Generator) KnowledgeTree(ctx context.Context, topic string) (*domain.Outline, error) {
	var outline domain.Outline
	err := g.generateJSON(ctx, "knowledge_tree", creatorJSONSystemPrompt, fmt.Sprintf(knowledgeTreePrompt, topic), &outline)
	if err != nil {
		return nil, err
	}
	if err := outline.Validate(); err != nil {
		return nil, generationError(err)
	}
	return &outline, nil
}

// Lesson writes the prose of one subsection. The result is unsanitized.
func (g *Generator) Lesson(ctx context.Context, sc *domain.SubsectionContext) (string, error) {
	text, err := g.complete(ctx, "lesson", []llm.Message{
		{Role: llm.RoleSystem, Content: creatorSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(lessonPrompt, sc.SectionTitle, sc.Title, sc.Description)},
	}, false)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", generationError(fmt.Errorf("%w: empty lesson", domain.ErrMalformedGeneration))
	}
	return text, nil
}

// Questions asks for practice questions on a section. Replies shaped as
// {"questions": [...]} and as a bare array are both accepted.
func (g *Generator) Questions(ctx context.Context, section *domain.Section, difficulty string) ([]domain.GeneratedQuestion, error) {
	prompt := fmt.Sprintf(questionsPrompt, section.Title, section.Description, difficulty, difficulty)

	var raw json.RawMessage
	if err := g.generateJSON(ctx, "questions", creatorSystemPrompt, prompt, &raw); err != nil {
		return nil, err
	}

	questions, err := decodeQuestions(raw)
	if err != nil {
		return nil, generationError(err)
	}

	for i := range questions {
		q := &questions[i]
		q.Text = strings.TrimSpace(q.Text)
		q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
		if q.Text == "" || q.CorrectAnswer == "" {
			return nil, generationError(fmt.Errorf("%w: question %d lacks text or answer", domain.ErrMalformedGeneration, i))
		}
		if !domain.IsValidDifficulty(q.Difficulty) {
			q.Difficulty = difficulty
		}
	}
	return questions, nil
}

func decodeQuestions(raw json.RawMessage) ([]domain.GeneratedQuestion, error) {
	var questions []domain.GeneratedQuestion
	if err := json.Unmarshal(raw, &questions); err != nil {
		var wrapped struct {
			Questions []domain.GeneratedQuestion `json:"questions"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: questions are neither an array nor an object", domain.ErrMalformedGeneration)
		}
		questions = wrapped.Questions
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", domain.ErrMalformedGeneration)
	}
	return questions, nil
}

// Evaluate grades a free-text answer against the stored correct answer.
func (g *Generator) Evaluate(ctx context.Context, q *domain.Question, answer string) (*domain.Evaluation, error) {
	var reply struct {
		IsCorrect *bool  `json:"is_correct"`
		Feedback  string `json:"feedback"`
	}
	prompt := fmt.Sprintf(evaluatePrompt, q.Text, q.CorrectAnswer, answer)
	if err := g.generateJSON(ctx, "evaluation", evaluatorSystemPrompt, prompt, &reply); err != nil {
		return nil, err
	}
	if reply.IsCorrect == nil {
		return nil, generationError(fmt.Errorf("%w: evaluation lacks is_correct", domain.ErrMalformedGeneration))
	}
	return &domain.Evaluation{IsCorrect: *reply.IsCorrect, Feedback: strings.TrimSpace(reply.Feedback)}, nil
}

func (g *Generator) generateJSON(ctx context.Context, kind, system, prompt string, dst any) error {
	text, err := g.complete(ctx, kind, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: prompt},
	}, true)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripCodeFence(text)), dst); err != nil {
		g.logger.WarnContext(ctx, "undecodable generation",
			slog.String("kind", kind),
			slog.Int("length", len(text)),
		)
		return generationError(fmt.Errorf("%w: %s reply is not valid JSON", domain.ErrMalformedGeneration, kind))
	}
	return nil
}

func (g *Generator) complete(ctx context.Context, kind string, messages []llm.Message, jsonMode bool) (string, error) {
	start := time.Now()
	text, err := g.provider.GenerateCompletion(ctx, messages, jsonMode)
	if err != nil {
		g.logger.ErrorContext(ctx, "generation failed",
			slog.String("kind", kind),
			slog.String("provider", g.provider.Name()),
			slog.String("error", err.Error()),
		)
		return "", generationError(err)
	}

	g.logger.DebugContext(ctx, "generation completed",
		slog.String("kind", kind),
		slog.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// stripCodeFence removes a surrounding Markdown code fence such as
// "```json ... ```" that models often wrap JSON in.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}
