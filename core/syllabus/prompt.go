package syllabus

import (
	"fmt"
	"strings"
)

const schemaBlock = `{
  "assignments": [
    {
      "title": "Assignment title",
      "description": "Brief description",
      "due_date": "%[1]d-MM-DD",
      "type": "assignment|homework|project|exam|quiz",
      "priority": "high|medium|low",
      "estimated_hours": number
    }
  ]
}`

const pdfPrompt = `Analyze this PDF syllabus and extract ALL assignments, homework, projects, exams, and deadlines.

Look for items like:
- "Proj.1 out", "Project 1 due"
- "Homework out", "Homework due"
- "Exam due", "Midterm", "Final"
- Assignment names and dates

Return this exact JSON format:
%[2]s

Rules:
- Extract EVERY academic task you can find
- Convert dates to YYYY-MM-DD format (assume %[1]d if year not specified)
- Projects = high priority, Exams = high priority, Homework = medium priority
- Return ONLY valid JSON, no other text`

const visionPrompt = `Analyze this syllabus image and extract all assignments, homework, projects, exams, and deadlines. Look for due dates, assignment names, and any academic tasks.

Provide the information in this exact JSON format:
%[2]s

Rules:
- Extract ALL assignments, projects, homework, exams you can see
- For dates like "Feb 12", "Mar 24", assume year %[1]d
- Convert month abbreviations to full dates
- If you see "Proj.1 out", "Homework due", "Exam due" etc., these are assignments
- Estimate priority: projects=high, exams=high, homework=medium
- Return only valid JSON, no other text`

const textPrompt = `Analyze this syllabus content and extract ALL assignments, homework, projects, exams, and deadlines.

Look for items like:
- "Proj.1 out" (project release)
- "Proj.2 out", "Proj.2 due" (project deadlines)
- "Homework out", "Homework due" (homework assignments)
- "Exam due" (exam deadlines)
- "Final Proj." related items

For each assignment/task found, provide this exact JSON format:
%[2]s

Rules:
- Extract EVERY academic task (assignments, projects, homework, exams)
- For dates like "12-Feb", "24-Mar", convert to "%[1]d-02-12", "%[1]d-03-24" format
- Items marked "out" are assignment releases (still include them)
- Items marked "due" are deadlines
- Projects = high priority, Exams = high priority, Homework = medium priority
- Estimate hours: homework=2-4h, projects=10-20h, exams=3-5h study time
- Return ONLY valid JSON, no explanation text

Content to analyze:
%[3]s`

// BuildPrompt returns the instructions for the payload's mode.
// The document text is inlined for ModeText; binary payloads travel alongside the prompt.
func BuildPrompt(p *Payload, academicYear int) string {
	schema := fmt.Sprintf(schemaBlock, academicYear)
	switch p.Mode {
	case ModePDF:
		return fmt.Sprintf(pdfPrompt, academicYear, schema)
	case ModeVision:
		return fmt.Sprintf(visionPrompt, academicYear, schema)
	default:
		return fmt.Sprintf(textPrompt, academicYear, schema, strings.TrimSpace(p.Text))
	}
}
