package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", e.cfg.Database.Driver)
			return nil
		},
	}
}

type createAdminOptions struct {
	email    string
	name     string
	password string
}

// NewCreateAdminCommand creates the create-admin command.
func NewCreateAdminCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &createAdminOptions{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote an existing user",
		Long: `Create an admin account, or promote an existing user.

The password is read from the terminal unless --password is given.
It is ignored when the user already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateAdmin(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&opts.name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, rootOpts *RootOptions, opts *createAdminOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(rootOpts)
	if err != nil {
		return err
	}
	defer e.Close()

	existing, err := e.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(opts.email)))
	if err != nil {
		return err
	}

	userID := ""
	if existing != nil {
		userID = existing.ID
	} else {
		password := opts.password
		if password == "" {
			if password, err = readPassword(cmd, "Password: "); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if len(password) < 8 {
			return errors.New("password must be at least 8 characters")
		}

		resp, err := e.svc.Register(ctx, models.RegisterRequest{
			Email:    opts.email,
			Password: password,
			Name:     opts.name,
		})
		if err != nil {
			return err
		}
		userID = resp.UserID
	}

	user, err := e.svc.UpdateUserRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s)\n", user.Email, user.ID)
	return nil
}

// readPassword reads a password without echo
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; use --password")
	}

	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

// NewSetRoleCommand creates the set-role command.
func NewSetRoleCommand(rootOpts *RootOptions) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change a user's role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			user, err := e.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("%w: no user with email %s", service.ErrNotFound, email)
			}

			updated, err := e.svc.UpdateUserRole(ctx, user.ID, models.Role(role))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.Email, updated.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (required)")
	cmd.Flags().StringVar(&role, "role", "", "user or admin (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

// NewAddBookCommand creates the add-book command.
func NewAddBookCommand(rootOpts *RootOptions) *cobra.Command {
	req := models.AddBookRequest{}

	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a title to the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			book, err := e.svc.AddToLibrary(ctx, req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added %q as %s with %d copies\n", book.Title, book.ID, book.TotalCopies)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "book title (required)")
	cmd.Flags().StringArrayVar(&req.Authors, "author", nil, "author, repeatable")
	cmd.Flags().StringVar(&req.ExternalID, "external-id", "", "catalog id, e.g. a Google Books volume id")
	cmd.Flags().StringVar(&req.Publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&req.PublishedDate, "published", "", "publication date")
	cmd.Flags().IntVar(&req.TotalCopies, "copies", 1, "number of copies")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}
