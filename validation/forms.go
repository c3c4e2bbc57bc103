package validation

import (
	"strings"
)

type RegisterInput struct {
	Name      string `json:"name" validate:"required,min=2,max=30"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=30"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type PostInput struct {
	Text   string `json:"text" validate:"required,max=300"`
	Name   string `json:"name" validate:"max=100"`
	Avatar string `json:"avatar" validate:"max=500"`
}

// ProfileInput is a profile submission. Empty fields are treated as absent
// and leave the stored value untouched.
type ProfileInput struct {
	Handle         string `json:"handle" validate:"omitempty,min=2,max=40"`
	Company        string `json:"company" validate:"max=100"`
	Website        string `json:"website" validate:"omitempty,url"`
	Location       string `json:"location" validate:"max=100"`
	Bio            string `json:"bio" validate:"max=1000"`
	Status         string `json:"status" validate:"max=100"`
	GithubUsername string `json:"githubusername" validate:"max=39"`
	// Skills is a comma separated list.
	Skills    string `json:"skills"`
	Youtube   string `json:"youtube" validate:"omitempty,url"`
	Twitter   string `json:"twitter" validate:"omitempty,url"`
	Facebook  string `json:"facebook" validate:"omitempty,url"`
	Linkedin  string `json:"linkedin" validate:"omitempty,url"`
	Instagram string `json:"instagram" validate:"omitempty,url"`
}

type ExperienceInput struct {
	Title       string `json:"title" validate:"required,max=100"`
	Company     string `json:"company" validate:"required,max=100"`
	Location    string `json:"location" validate:"max=100"`
	From        string `json:"from" validate:"required,date"`
	To          string `json:"to" validate:"omitempty,date"`
	Current     bool   `json:"current"`
	Description string `json:"description" validate:"max=1000"`
}

type EducationInput struct {
	School       string `json:"school" validate:"required,max=100"`
	Degree       string `json:"degree" validate:"required,max=100"`
	FieldOfStudy string `json:"fieldofstudy" validate:"required,max=100"`
	From         string `json:"from" validate:"required,date"`
	To           string `json:"to" validate:"omitempty,date"`
	Current      bool   `json:"current"`
	Description  string `json:"description" validate:"max=1000"`
}

var registerMessages = messages{
	"name": {
		"required": "Name field is required",
		"min":      "Name must be between 2 and 30 characters",
		"max":      "Name must be between 2 and 30 characters",
	},
	"email": {
		"required": "Email field is required",
		"email":    "Email is invalid",
	},
	"password": {
		"required": "Password field is required",
		"min":      "Password must be at least 6 characters",
		"max":      "Password must be at most 30 characters",
	},
	"password2": {
		"required": "Confirm password field is required",
		"eqfield":  "Passwords must match",
	},
}

var loginMessages = messages{
	"email": {
		"required": "Email field is required",
		"email":    "Email is invalid",
	},
	"password": {
		"required": "Password field is required",
	},
}

var postMessages = messages{
	"text": {
		"required": "Text field is required",
		"max":      "Post must be between 1 and 300 characters",
	},
}

var profileMessages = messages{
	"handle": {
		"min": "Handle needs to be between 2 and 40 characters",
		"max": "Handle needs to be between 2 and 40 characters",
	},
	"website":   {"url": "Not a valid URL"},
	"youtube":   {"url": "Not a valid URL"},
	"twitter":   {"url": "Not a valid URL"},
	"facebook":  {"url": "Not a valid URL"},
	"linkedin":  {"url": "Not a valid URL"},
	"instagram": {"url": "Not a valid URL"},
}

var experienceMessages = messages{
	"title":   {"required": "Job title field is required"},
	"company": {"required": "Company field is required"},
	"from": {
		"required": "From date field is required",
		"date":     "From date is not a valid date",
	},
	"to": {"date": "To date is not a valid date"},
}

var educationMessages = messages{
	"school":       {"required": "School field is required"},
	"degree":       {"required": "Degree field is required"},
	"fieldofstudy": {"required": "Field of study field is required"},
	"from": {
		"required": "From date field is required",
		"date":     "From date is not a valid date",
	},
	"to": {"date": "To date is not a valid date"},
}

func ValidateRegisterInput(in *RegisterInput) (map[string]string, bool) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return check(in, registerMessages)
}

func ValidateLoginInput(in *LoginInput) (map[string]string, bool) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return check(in, loginMessages)
}

func ValidatePostInput(in *PostInput) (map[string]string, bool) {
	in.Text = strings.TrimSpace(in.Text)
	in.Name = strings.TrimSpace(in.Name)
	in.Avatar = strings.TrimSpace(in.Avatar)
	return check(in, postMessages)
}

// ValidateProfileInput trims every field and adds a scheme to bare URLs
// before checking them.
func ValidateProfileInput(in *ProfileInput) (map[string]string, bool) {
	trimAll(&in.Handle, &in.Company, &in.Location, &in.Bio, &in.Status, &in.GithubUsername, &in.Skills)
	for _, f := range []*string{
		&in.Website, &in.Youtube, &in.Twitter, &in.Facebook, &in.Linkedin, &in.Instagram,
	} {
		*f = URLPrefix(strings.TrimSpace(*f))
	}
	return check(in, profileMessages)
}

// ValidateProfileCreate adds the fields a brand new profile cannot do
// without.
func ValidateProfileCreate(in *ProfileInput) (map[string]string, bool) {
	errs, _ := ValidateProfileInput(in)
	if isEmpty(in.Handle) {
		errs["handle"] = "Profile handle is required"
	}
	if isEmpty(in.Status) {
		errs["status"] = "Status field is required"
	}
	if len(SplitSkills(in.Skills)) == 0 {
		errs["skills"] = "Skills field is required"
	}
	return errs, len(errs) == 0
}

func ValidateExperienceInput(in *ExperienceInput) (map[string]string, bool) {
	trimAll(&in.Title, &in.Company, &in.Location, &in.From, &in.To, &in.Description)
	errs, _ := check(in, experienceMessages)
	checkDateRange(errs, in.From, in.To)
	return errs, len(errs) == 0
}

func ValidateEducationInput(in *EducationInput) (map[string]string, bool) {
	trimAll(&in.School, &in.Degree, &in.FieldOfStudy, &in.From, &in.To, &in.Description)
	errs, _ := check(in, educationMessages)
	checkDateRange(errs, in.From, in.To)
	return errs, len(errs) == 0
}

// SplitSkills turns "go, rust,,sql" into ["go" "rust" "sql"].
func SplitSkills(s string) []string {
	skills := []string{}
	for _, skill := range strings.Split(s, ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}

// URLPrefix adds http:// to URLs given without a scheme.
func URLPrefix(url string) string {
	if url == "" || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "http://" + url
}

func checkDateRange(errs map[string]string, from, to string) {
	if _, bad := errs["from"]; bad || to == "" {
		return
	}
	if _, bad := errs["to"]; bad {
		return
	}
	f, _ := ParseDate(from)
	t, _ := ParseDate(to)
	if t.Before(f) {
		errs["to"] = "To date must not be before from date"
	}
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
