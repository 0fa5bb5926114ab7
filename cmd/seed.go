package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/baseline"
	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
	"github.com/primary-workspace/pulseai-hackshodh/internal/store"
)

const (
	demoPatientID   int64 = 1
	demoDoctorID    int64 = 2
	demoCaretakerID int64 = 3
)

var seedDays int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load development fixtures",
	Long: `Creates a demo patient with an accepted doctor and caretaker in the
care circle. With --days N, also generates N days of plausible signal records
for the patient and refreshes baselines so scoring works immediately.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := seedCareCircle(ctx, st); err != nil {
			return err
		}

		if seedDays > 0 {
			n, err := seedDemoRecords(ctx, st, demoPatientID, seedDays)
			if err != nil {
				return err
			}
			if _, err := baseline.NewCalculator(st).Refresh(ctx, demoPatientID, seedDays); err != nil {
				return eris.Wrap(err, "seed: refresh baselines")
			}
			zap.L().Info("demo records seeded",
				zap.Int("records", n),
				zap.Int("days", seedDays),
			)
		}

		zap.L().Info("fixtures loaded",
			zap.Int64("patient", demoPatientID),
			zap.Int64("doctor", demoDoctorID),
			zap.Int64("caretaker", demoCaretakerID),
		)
		return nil
	},
}

func seedCareCircle(ctx context.Context, st store.Store) error {
	users := []model.User{
		{ID: demoPatientID, Name: "Asha Demo", Role: "patient"},
		{ID: demoDoctorID, Name: "Dr. Priya Rao", Role: "doctor"},
		{ID: demoCaretakerID, Name: "Ravi Demo", Role: "caretaker"},
	}
	for _, u := range users {
		if err := st.UpsertUser(ctx, u); err != nil {
			return eris.Wrapf(err, "seed: upsert user %d", u.ID)
		}
	}

	links := []model.CareLink{
		{PatientID: demoPatientID, MemberID: demoDoctorID, Role: model.RoleDoctor, Status: model.LinkAccepted, AccessLevel: "full"},
		{PatientID: demoPatientID, MemberID: demoCaretakerID, Role: model.RoleCaretaker, Status: model.LinkAccepted, AccessLevel: "alerts"},
	}
	for _, l := range links {
		if err := st.UpsertCareLink(ctx, l); err != nil {
			return eris.Wrapf(err, "seed: upsert care link %d->%d", l.PatientID, l.MemberID)
		}
	}
	return nil
}

// seedDemoRecords writes one plausible record per day, newest yesterday.
// The generator is seeded deterministically so repeated seeds produce the
// same history.
func seedDemoRecords(ctx context.Context, st store.Store, userID int64, days int) (int, error) {
	rng := rand.New(rand.NewSource(42))
	morning := time.Now().UTC().Truncate(24 * time.Hour).Add(8 * time.Hour)

	records := make([]model.SignalRecord, 0, days)
	for d := days; d > 0; d-- {
		steps := int64(6000 + rng.Intn(3000))
		records = append(records, model.SignalRecord{
			UserID:        userID,
			RecordedAt:    morning.AddDate(0, 0, -d),
			Source:        "seed",
			HeartRate:     model.Float(jitter(rng, 70, 4)),
			HRV:           model.Float(jitter(rng, 50, 6)),
			SleepDuration: model.Float(jitter(rng, 7.2, 0.6)),
			SleepQuality:  model.Float(jitter(rng, 82, 6)),
			ActivityLevel: model.Float(float64(steps)),
			BreathingRate: model.Float(jitter(rng, 14, 1)),
			BPSystolic:    model.Float(jitter(rng, 118, 5)),
			BPDiastolic:   model.Float(jitter(rng, 76, 4)),
			BloodSugar:    model.Float(jitter(rng, 96, 7)),
			SpO2:          model.Float(jitter(rng, 98, 0.6)),
			Temperature:   model.Float(jitter(rng, 36.6, 0.2)),
			Steps:         model.Int(steps),
		})
	}

	n, err := st.InsertSignalRecords(ctx, records)
	if err != nil {
		return 0, eris.Wrap(err, "seed: insert demo records")
	}
	return n, nil
}

// jitter returns mean plus a uniform offset within ±spread.
func jitter(rng *rand.Rand, mean, spread float64) float64 {
	return mean + (rng.Float64()*2-1)*spread
}

func init() {
	seedCmd.Flags().IntVar(&seedDays, "days", 0, "days of demo signal records to generate (0 disables)")
	rootCmd.AddCommand(seedCmd)
}
