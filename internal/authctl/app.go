// Package authctl implements the administrative bootstrap tool. It creates
// the first ADMIN user directly in the database, so the role-protected
// endpoints are usable before any admin exists.
package authctl

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/server/auth"
	"github.com/avoronin/authkeeper/internal/server/models"
	"github.com/avoronin/authkeeper/internal/server/repositories/repomanager"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

type App struct {
	dsn   string
	email string
	out   io.Writer
	in    *bufio.Reader
}

func NewApp(dsn, email string) *App {
	return &App{
		dsn:   dsn,
		email: email,
		out:   os.Stdout,
		in:    bufio.NewReader(os.Stdin),
	}
}

// Run creates an ADMIN user with the configured email, prompting for the
// password on the terminal without echo.
func (a *App) Run(ctx context.Context) error {

	email := strings.TrimSpace(a.email)
	if email == "" {
		var err error
		email, err = a.promptEmail()
		if err != nil {
			return err
		}
	}
	if email == "" {
		return errors.New("email is required")
	}

	password, err := a.promptPassword()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("password hash error: %w", err)
	}

	db, err := sql.Open("pgx", a.dsn)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	user, err := rm.Users(db).Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{models.RoleUser, models.RoleAdmin},
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return fmt.Errorf("user %s already exists", email)
		}
		return err
	}

	fmt.Fprintf(a.out, "admin user created: %s (%s)\n", user.Email, user.ID)
	return nil
}

func (a *App) promptEmail() (string, error) {
	fmt.Fprint(a.out, "Enter admin email\n> ")
	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) promptPassword() (string, error) {
	fmt.Fprint(a.out, "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}

	fmt.Fprint(a.out, "Repeat password: ")
	pw2, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}

	if string(pw) != string(pw2) {
		return "", errors.New("passwords do not match")
	}
	if len(pw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(pw), nil
}
