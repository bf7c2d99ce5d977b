package models

// Question 배틀용 객관식 문제
type Question struct {
	ID            string   `json:"id" db:"id"`
	Title         string   `json:"title" db:"title"`
	Description   string   `json:"description" db:"description"`
	Options       []string `json:"options" db:"options"`
	CorrectAnswer int      `json:"correctAnswer" db:"correct_answer"`
	Topic         string   `json:"topic" db:"topic"`
}
