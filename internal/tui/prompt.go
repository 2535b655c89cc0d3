package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/charmbracelet/huh"
)

// TwoFactorCodeLength is the number of digits in a verification code
const TwoFactorCodeLength = 6

// ErrAborted is returned when the user cancels a prompt with ctrl+c or esc
var ErrAborted = errors.New("prompt aborted")

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
	Secret      bool
}

// Credentials are the answers of the login form
type Credentials struct {
	Email    string
	Password string
}

// PromptForString displays an interactive prompt and returns the user's input
func PromptForString(p Prompt) (string, error) {
	value := p.Default

	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value)
	if p.Secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if p.Required {
		input = input.Validate(required(p.Message))
	}

	if err := run(huh.NewForm(huh.NewGroup(input))); err != nil {
		return "", err
	}

	return strings.TrimSpace(value), nil
}

// PromptCredentials asks for email and password. Either may be prefilled;
// a prefilled field is still shown so it can be corrected.
func PromptCredentials(defaults Credentials) (Credentials, error) {
	creds := defaults

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Email").
			Placeholder("you@company.com").
			Value(&creds.Email).
			Validate(ValidateEmail),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&creds.Password).
			Validate(required("Password")),
	).Title("Sign in to Apporte"))

	if err := run(form); err != nil {
		return Credentials{}, err
	}

	creds.Email = strings.TrimSpace(creds.Email)
	return creds, nil
}

// PromptTwoFactorCode asks for the verification code. lastErr, when set, is
// shown above the field so a rejected code can be retried in place.
func PromptTwoFactorCode(lastErr string) (string, error) {
	var code string

	description := "Enter the code from your authenticator app"
	if lastErr != "" {
		description = lastErr + "\n" + description
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Verification code").
			Description(description).
			Placeholder(strings.Repeat("0", TwoFactorCodeLength)).
			CharLimit(TwoFactorCodeLength).
			Value(&code).
			Validate(ValidateTwoFactorCode),
	))

	if err := run(form); err != nil {
		return "", err
	}

	return NormalizeTwoFactorCode(code), nil
}

// PromptNewPassword asks for a password twice and checks they match.
func PromptNewPassword() (string, error) {
	var password, confirmation string

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("New password").
			EchoMode(huh.EchoModePassword).
			Value(&password).
			Validate(required("Password")),
		huh.NewInput().
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(&confirmation).
			Validate(func(s string) error {
				if s != password {
					return errors.New("passwords do not match")
				}
				return nil
			}),
	))

	if err := run(form); err != nil {
		return "", err
	}

	return password, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := run(huh.NewForm(huh.NewGroup(confirm))); err != nil {
		return false, err
	}

	return confirmed, nil
}

// NormalizeTwoFactorCode drops everything but digits, so "123 456" and
// "123-456" are accepted.
func NormalizeTwoFactorCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateTwoFactorCode accepts exactly TwoFactorCodeLength digits after
// normalization.
func ValidateTwoFactorCode(code string) error {
	if n := len(NormalizeTwoFactorCode(code)); n != TwoFactorCodeLength {
		return fmt.Errorf("code must be %d digits", TwoFactorCodeLength)
	}
	return nil
}

// ValidateEmail performs the same shallow check as an HTML email input.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return errors.New("enter a valid email address")
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func run(form *huh.Form) error {
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
