package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesikahq/hospital-api/internal/appointment"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/cache"
	"github.com/mesikahq/hospital-api/internal/database"
	"github.com/mesikahq/hospital-api/internal/dates"
	"github.com/mesikahq/hospital-api/internal/doctor"
	"github.com/mesikahq/hospital-api/internal/notification"
	"github.com/mesikahq/hospital-api/internal/nurse"
	"github.com/mesikahq/hospital-api/internal/patient"
)

type fixtures struct {
	Users        []userFixture        `yaml:"users"`
	Appointments []appointmentFixture `yaml:"appointments"`
}

type userFixture struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`

	Specialization    *string  `yaml:"specialization"`
	YearsOfExperience *int     `yaml:"years_of_experience"`
	Charges           *float64 `yaml:"charges"`
	PhoneNumber       *string  `yaml:"phone_number"`
	DateOfBirth       *string  `yaml:"date_of_birth"`
	Gender            *string  `yaml:"gender"`
	Address           *string  `yaml:"address"`
	BloodGroup        *string  `yaml:"blood_group"`
	EmergencyContact  *string  `yaml:"emergency_contact"`
}

type appointmentFixture struct {
	Patient string `yaml:"patient"`
	Doctor  string `yaml:"doctor"`
	Date    string `yaml:"date"`
	Notes   string `yaml:"notes"`
}

// parseFixtures decodes and checks a seed file. Appointments refer to users
// by email.
func parseFixtures(r io.Reader) (*fixtures, error) {
	var f fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}

	for i, u := range f.Users {
		if strings.TrimSpace(u.Email) == "" {
			return nil, fmt.Errorf("users[%d]: email is required", i)
		}
		if _, err := auth.ParseRole(u.Role); err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}
	}
	for i, a := range f.Appointments {
		if a.Patient == "" || a.Doctor == "" {
			return nil, fmt.Errorf("appointments[%d]: patient and doctor are required", i)
		}
		if _, err := dates.Parse(a.Date); err != nil {
			return nil, fmt.Errorf("appointments[%d]: invalid date %q", i, a.Date)
		}
	}
	return &f, nil
}

// seeder creates fixture accounts, their profiles and appointments.
type seeder struct {
	accounts     auth.Service
	doctors      doctor.Service
	nurses       nurse.Service
	patients     patient.Service
	appointments appointment.Service
	logger       *zap.Logger

	// email -> role profile id
	profiles map[string]string
}

func (s *seeder) run(ctx context.Context, f *fixtures) error {
	s.profiles = map[string]string{}

	for _, u := range f.Users {
		if err := s.user(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
	}

	for _, a := range f.Appointments {
		patientID, ok := s.profiles[strings.ToLower(a.Patient)]
		if !ok {
			return fmt.Errorf("appointment: unknown patient %s", a.Patient)
		}
		doctorID, ok := s.profiles[strings.ToLower(a.Doctor)]
		if !ok {
			return fmt.Errorf("appointment: unknown doctor %s", a.Doctor)
		}
		date, _ := dates.Parse(a.Date)

		created, err := s.appointments.Schedule(ctx, appointment.ScheduleRequest{
			PatientID: patientID,
			DoctorID:  doctorID,
			Date:      date,
			Notes:     a.Notes,
		})
		if err != nil {
			if errors.Is(err, appointment.ErrConflict) {
				s.logger.Info("Appointment slot already taken, skipping",
					zap.String("doctor", a.Doctor),
					zap.String("date", a.Date),
				)
				continue
			}
			return fmt.Errorf("appointment %s with %s on %s: %w", a.Patient, a.Doctor, a.Date, err)
		}
		s.logger.Info("Seeded appointment", zap.String("appointment_id", created.ID))
	}
	return nil
}

func (s *seeder) user(ctx context.Context, u userFixture) error {
	role, _ := auth.ParseRole(u.Role)

	account, err := s.accounts.CreateAccount(ctx, u.Email, u.Password, u.Name, []auth.Role{role})
	switch {
	case errors.Is(err, auth.ErrEmailInUse):
		account, err = s.existing(ctx, u.Email)
		if err != nil {
			return err
		}
		s.logger.Info("Account exists, reusing", zap.String("email", u.Email))
	case err != nil:
		return err
	}

	id, err := s.profile(ctx, role, account.ID, u)
	if err != nil {
		return err
	}
	if id != "" {
		s.profiles[strings.ToLower(u.Email)] = id
	}
	return nil
}

func (s *seeder) existing(ctx context.Context, email string) (*auth.Account, error) {
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

// profile returns the role profile id for the account, creating it when
// missing. Admins have no profile.
func (s *seeder) profile(ctx context.Context, role auth.Role, accountID string, u userFixture) (string, error) {
	switch role {
	case auth.RoleDoctor:
		if d, err := s.doctors.GetByAccount(ctx, accountID); err == nil {
			return d.ID, nil
		}
		d, err := s.doctors.Create(ctx, accountID, doctor.Profile{
			Specialization:    u.Specialization,
			YearsOfExperience: u.YearsOfExperience,
			Charges:           u.Charges,
			PhoneNumber:       u.PhoneNumber,
		})
		if err != nil {
			return "", err
		}
		return d.ID, nil
	case auth.RoleNurse:
		if n, err := s.nurses.GetByAccount(ctx, accountID); err == nil {
			return n.ID, nil
		}
		n, err := s.nurses.Create(ctx, accountID, nurse.Profile{
			YearsOfExperience: u.YearsOfExperience,
			PhoneNumber:       u.PhoneNumber,
		})
		if err != nil {
			return "", err
		}
		return n.ID, nil
	case auth.RolePatient:
		if p, err := s.patients.GetByAccount(ctx, accountID); err == nil {
			return p.ID, nil
		}
		p, err := s.patients.Create(ctx, accountID, patient.Profile{
			DateOfBirth:      u.DateOfBirth,
			Gender:           u.Gender,
			PhoneNumber:      u.PhoneNumber,
			Address:          u.Address,
			BloodGroup:       u.BloodGroup,
			EmergencyContact: u.EmergencyContact,
		})
		if err != nil {
			return "", err
		}
		return p.ID, nil
	}
	return "", nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and appointments from a YAML fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			f, err := parseFixtures(file)
			if err != nil {
				return err
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			db, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer database.Disconnect(db)

			// Fixtures never send real mail.
			cfg.Notification.Driver = "log"
			sender, err := notification.NewSender(cfg.Notification, logger)
			if err != nil {
				return err
			}
			dispatcher := notification.NewDispatcher(sender, cfg.Notification.From, cfg.Notification.Timeout, logger)
			defer dispatcher.Wait()

			accounts := auth.NewService(auth.NewPostgresRepository(db), nil, cache.New(nil, ""), auth.AuthServiceConfig{
				JWTSecret: cfg.Auth.JWTSecret,
			}, logger)
			doctors := doctor.NewService(doctor.NewPostgresRepository(db), nil, logger)
			patients := patient.NewService(patient.NewPostgresRepository(db), nil, logger)

			s := &seeder{
				accounts: accounts,
				doctors:  doctors,
				nurses:   nurse.NewService(nurse.NewPostgresRepository(db)),
				patients: patients,
				appointments: appointment.NewService(
					appointment.NewPostgresRepository(db), patients, doctors, dispatcher, nil, logger,
				),
				logger: logger,
			}
			if err := s.run(ctx, f); err != nil {
				return err
			}

			fmt.Printf("Seeded %d user(s) and %d appointment(s) from %s\n", len(f.Users), len(f.Appointments), path)
			return nil
		},
	}
	cmd.Flags().String("file", "configs/seed.yaml", "Path to the fixture file")
	return cmd
}
