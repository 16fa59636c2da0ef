package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	redisstore "github.com/pilab-dev/shadow-auth/cache/redis"
	"github.com/pilab-dev/shadow-auth/internal/auth"
	"github.com/pilab-dev/shadow-auth/internal/auth/totp"
	"github.com/pilab-dev/shadow-auth/internal/lockout"
	"github.com/pilab-dev/shadow-auth/mongodb"
	"github.com/pilab-dev/shadow-auth/services"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const redisKeyPrefix = "shadow-auth"

var userCmd = &cobra.Command{
	Use:     "user",
	Short:   "Manage panel users",
	Aliases: []string{"users"},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a local user with a password",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := createOptions{}
		opts.Email, _ = cmd.Flags().GetString("email")
		opts.Username, _ = cmd.Flags().GetString("username")
		opts.Password, _ = cmd.Flags().GetString("password")
		opts.FirstName, _ = cmd.Flags().GetString("first")
		opts.LastName, _ = cmd.Flags().GetString("last")
		opts.RootAdmin, _ = cmd.Flags().GetBool("admin")
		opts.EnableTOTP, _ = cmd.Flags().GetBool("totp")
		qrOut, _ := cmd.Flags().GetString("qr-out")

		if opts.Password == "" {
			password, err := promptPassword()
			if err != nil {
				return err
			}
			opts.Password = password
		}

		users, closeDB, err := openUsers(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		user, enrollment, err := createUser(cmd.Context(), users, auth.NewBcryptPasswordHasher(bcrypt.DefaultCost), cfg.AppName, opts)
		if err != nil {
			return err
		}
		appLogger.Debug(cmd.Context(), "User created", map[string]any{"user_id": user.ID})

		fmt.Fprintln(cmd.OutOrStdout(), "User created successfully:")
		return printEnrollment(cmd.OutOrStdout(), viewOf(user), enrollment, qrOut)
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get [ID_EMAIL_OR_USERNAME]",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		users, closeDB, err := openUsers(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		user, err := findUser(cmd.Context(), users, args[0])
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		return printYAML(cmd.OutOrStdout(), viewOf(user))
	},
}

var userTOTPCmd = &cobra.Command{
	Use:   "totp [ID_EMAIL_OR_USERNAME]",
	Short: "Enable two factor login with a new secret, or disable it with --disable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disable, _ := cmd.Flags().GetBool("disable")
		qrOut, _ := cmd.Flags().GetString("qr-out")

		users, closeDB, err := openUsers(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		user, err := findUser(cmd.Context(), users, args[0])
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}

		enrollment, err := setTOTP(cmd.Context(), users, user, cfg.AppName, !disable)
		if err != nil {
			return err
		}
		if disable {
			fmt.Fprintf(cmd.OutOrStdout(), "Two factor login disabled for %s\n", user.Username)
			return nil
		}
		return printEnrollment(cmd.OutOrStdout(), viewOf(user), enrollment, qrOut)
	},
}

var userUnlockCmd = &cobra.Command{
	Use:   "unlock [IDENTIFIER]",
	Short: "Clear the failed login counter for an identifier and client IP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ip, _ := cmd.Flags().GetString("ip")
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is not set; in-process counters can only be cleared by restarting the server")
		}

		client, err := redisstore.Connect(cmd.Context(), cfg.RedisURL, redisstore.ConnectOptions{RetryAttempts: 1})
		if err != nil {
			return err
		}
		defer client.Close()

		limiter := lockout.NewLimiter(lockout.NewRedisCounterStore(client, redisKeyPrefix), cfg.LockoutAttempts, cfg.LockoutTime)
		key := services.LoginAttempt{Identifier: args[0], ClientIP: ip}.Fingerprint()
		if err := limiter.Clear(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared failed attempts for %s from %s\n", args[0], ip)
		return nil
	},
}

func openUsers(ctx context.Context) (*mongodb.UserRepository, func(), error) {
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	closeDB := func() { mongodb.CloseMongoDB(context.Background()) }

	users, err := mongodb.NewUserRepository(ctx, mongodb.GetDB())
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return users, closeDB, nil
}

func promptPassword() (string, error) {
	fmt.Print("Enter password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Print("Confirm password: ")
	byteConfirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if string(bytePassword) != string(byteConfirm) {
		return "", errors.New("passwords do not match")
	}
	return string(bytePassword), nil
}

func printYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func printEnrollment(w io.Writer, view userView, enrollment *totpEnrollment, qrOut string) error {
	doc := struct {
		User userView        `yaml:"user"`
		TOTP *totpEnrollment `yaml:"totp,omitempty"`
	}{User: view, TOTP: enrollment}
	if err := printYAML(w, doc); err != nil {
		return err
	}

	if enrollment == nil || qrOut == "" {
		return nil
	}
	png, err := totp.GenerateTOTPQRCodeBytes(enrollment.URI)
	if err != nil {
		return err
	}
	if err := os.WriteFile(qrOut, png, 0o600); err != nil {
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	fmt.Fprintf(w, "QR code written to %s\n", qrOut)
	return nil
}

func init() {
	userCmd.AddCommand(userCreateCmd, userGetCmd, userTOTPCmd, userUnlockCmd)

	userCreateCmd.Flags().String("email", "", "email address (required)")
	userCreateCmd.Flags().String("username", "", "username (required)")
	userCreateCmd.Flags().String("password", "", "password; prompted when omitted")
	userCreateCmd.Flags().String("first", "", "first name")
	userCreateCmd.Flags().String("last", "", "last name")
	userCreateCmd.Flags().Bool("admin", false, "grant root admin")
	userCreateCmd.Flags().Bool("totp", false, "enable two factor login and print the secret")
	userCreateCmd.Flags().String("qr-out", "", "write the TOTP QR code PNG to this file")

	userTOTPCmd.Flags().Bool("disable", false, "disable two factor login")
	userTOTPCmd.Flags().String("qr-out", "", "write the TOTP QR code PNG to this file")

	userUnlockCmd.Flags().String("ip", "", "client IP the attempts came from (required)")
	_ = userUnlockCmd.MarkFlagRequired("ip")
}
