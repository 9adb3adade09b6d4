package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberauth/internal/config"
	"memberauth/internal/handler"
	"memberauth/internal/infra/db"
	infraRepo "memberauth/internal/infra/repository"
	"memberauth/internal/logging"
	"memberauth/internal/oauth"
	"memberauth/internal/repository"
	"memberauth/internal/server"
	"memberauth/internal/token"
	auth "memberauth/internal/usecase/auth_usecase"
	"memberauth/internal/validator"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	config.LoadDotEnv(".env", "../.env")

	cfg, err := config.Load()
	if err != nil {
		// ロガー設定前なのでstderrへ
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logging.New(cfg.LogLevel, cfg.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	//DB接続
	gormDB, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, gormDB); err != nil {
		return err
	}

	//Repository生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)

	var tokenRepo repository.TokenRepository
	var txTokens infraRepo.TokenRepositoryFactory
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		tokenRepo = infraRepo.NewTokenRedisRepository(rdb)
		txTokens = infraRepo.SharedTokens(tokenRepo)
	default:
		tokenRepo = infraRepo.NewTokenGormRepository(gormDB)
		txTokens = infraRepo.GormTokens
	}
	log.Info().Str("token_store", cfg.TokenStore).Msg("token store ready")

	//JWT（access/refreshで鍵を分ける）
	accessCodec := token.NewCodec([]byte(cfg.JWTSecret), token.TypeAccess)
	refreshCodec := token.NewCodec([]byte(cfg.JWTRefreshSecret), token.TypeRefresh)
	issuer, err := token.NewIssuer(accessCodec, refreshCodec, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, token.UUIDGenerator{})
	if err != nil {
		return err
	}

	//Usecase生成
	engine, err := auth.NewEngine(auth.Deps{
		Users:        userRepo,
		Tokens:       tokenRepo,
		Tx:           infraRepo.NewTxManagerGorm(gormDB, txTokens),
		Hasher:       auth.NewBcryptPasswordHasher(cfg.BcryptCost),
		Issuer:       issuer,
		RefreshCodec: refreshCodec,
		Validator:    validator.NewAuthValidator(),
		Logger:       log,
	})
	if err != nil {
		return err
	}

	//Handler生成
	routes := server.Routes{
		Access: accessCodec,
		Tokens: tokenRepo,
		Member: handler.NewMemberHandler(engine, log),
		Admin:  handler.NewAdminUserHandler(engine, log),
	}

	if cfg.OIDCEnabled() {
		provider, err := oauth.NewProvider(ctx, cfg)
		if err != nil {
			return err
		}
		routes.OAuth = handler.NewOAuthHandler(provider, engine, cfg.CookieSecure, log)
		log.Info().Str("provider", cfg.OIDCProvider).Msg("oauth2 login enabled")
	}

	//Server起動
	srv := server.New(cfg.Addr(), log)
	server.RegisterRoutes(srv.Echo(), routes)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
