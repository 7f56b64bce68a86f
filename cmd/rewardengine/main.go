package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/telecart-dev/reward-engine/auth"
	"github.com/telecart-dev/reward-engine/config"
	"github.com/telecart-dev/reward-engine/db/redis"
	"github.com/telecart-dev/reward-engine/engine"
	"github.com/telecart-dev/reward-engine/events/kafka"
	"github.com/telecart-dev/reward-engine/jobs"
	"github.com/telecart-dev/reward-engine/logging"
	"github.com/telecart-dev/reward-engine/notify"
	"github.com/telecart-dev/reward-engine/server"
	"github.com/telecart-dev/reward-engine/settings"
	"github.com/telecart-dev/reward-engine/store"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "rewardengine",
		Short: "Reward, promotion and fulfillment engine for the storefront bot",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (default: config-<env>.yaml)")

	root.AddCommand(serveCmd(), rotateCmd(), cleanupPromosCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadByEnv("./config")
}

// deps holds everything the commands wire up.
type deps struct {
	cfg *config.Config
	log zerolog.Logger

	redis    *redis.Client
	producer *kafka.Producer

	users     *store.Users
	products  *store.Products
	orders    *store.Orders
	promos    *store.Promos
	rewards   *store.Rewards
	referrals *store.Referrals

	draw        *engine.DrawEngine
	streak      *engine.StreakEngine
	validator   *engine.PromoValidator
	attributor  *engine.ReferralAttributor
	fulfillment *engine.FulfillmentEngine
	rotator     *engine.ScarcityRotator
}

func buildDeps() (*deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging)

	db, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		return nil, err
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Logger:  logger,
	})

	d := &deps{
		cfg:      cfg,
		log:      logger,
		redis:    redisClient,
		producer: producer,

		users:     store.NewUsers(db),
		products:  store.NewProducts(db),
		orders:    store.NewOrders(db),
		promos:    store.NewPromos(db),
		rewards:   store.NewRewards(db),
		referrals: store.NewReferrals(db),
	}

	settingsStore := settings.New(redisClient, logger)
	notifier := notify.NewKafkaNotifier(producer, cfg.Kafka.NotificationsTopic, logger)
	broadcaster := notify.NewAdminBroadcaster(notifier, cfg.Engine.AdminIDs, logger)

	d.draw = engine.NewDrawEngine(
		d.users, d.rewards, settingsStore,
		rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg.Engine.WheelCooldown, cfg.Engine.SlotsCooldown,
		logger,
	)
	d.streak = engine.NewStreakEngine(d.users, d.rewards, logger)
	d.validator = engine.NewPromoValidator(d.promos, logger)

	reconciler := engine.NewStockReconciler(d.products, logger)
	d.attributor = engine.NewReferralAttributor(d.users, d.orders, d.referrals, notifier, cfg.Engine.ReferralBonus, logger)
	d.fulfillment = engine.NewFulfillmentEngine(
		d.users, d.products, d.orders, d.promos,
		d.validator, reconciler, d.attributor, broadcaster,
		logger,
	)

	d.rotator = engine.NewScarcityRotator(
		d.products, d.promos,
		rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg.Engine.FlashSaleMinPrice, cfg.Engine.FlashSaleDuration,
		logger,
	)

	return d, nil
}

func (d *deps) close() {
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			d.log.Error().Err(err).Msg("Failed to close Kafka producer")
		}
	}
	if err := d.redis.Close(); err != nil {
		d.log.Error().Err(err).Msg("Failed to close Redis client")
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}

			app := server.New(server.Options{
				Config:      d.cfg,
				Logger:      d.log,
				Draw:        d.draw,
				Streak:      d.streak,
				Promos:      d.validator,
				Fulfillment: d.fulfillment,
				Referrals:   d.attributor,
				Rotator:     d.rotator,
				Rewards:     d.rewards,
			})
			app.UseCommonMiddlewares()
			app.RegisterHealthCheck()
			app.RegisterRoutes()

			jobCtx, cancelJobs := context.WithCancel(context.Background())
			runner := jobs.NewRunner(d.rotator, d.redis, d.cfg.Engine.RotationInterval, d.log)
			go runner.Run(jobCtx)

			app.OnShutdown(func() {
				cancelJobs()
				d.close()
			})

			return app.Run()
		},
	}
}

func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Run one flash-sale rotation and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.close()

			report, err := d.rotator.Rotate(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("rotated: %d products on sale until %s\n", report.Selected, report.EndsAt.Format(time.RFC3339))
			return nil
		},
	}
}

func cleanupPromosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-promos",
		Short: "Deactivate expired promo codes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.close()

			n, err := d.rotator.CleanupPromos(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("deactivated %d promo codes\n", n)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID, username string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a development JWT for API testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			token, err := auth.GenerateToken(cfg.JWT.Secret, userID, username, cfg.JWT.Expiration)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "dev-user", "user ID claim")
	cmd.Flags().StringVar(&username, "username", "dev", "username claim")
	return cmd
}
