package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"oddsfeed-service/config"
	"oddsfeed-service/database"
	"oddsfeed-service/services"
	"oddsfeed-service/web"
)

func main() {
	log.Println("Starting Oddsfeed Service...")

	// 加载配置
	cfg := config.Load()

	// 消息归档（可选）
	var archive *services.MessageArchive
	if cfg.ArchiveEnabled {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		archive = services.NewMessageArchive(db)

		log.Println("Database connected and migrated, archive enabled")
	} else {
		log.Println("Archive disabled, running pure in-memory")
	}

	// 创建实体缓存（进程内唯一实例，显式传递）
	store := services.NewEntityStore()
	defer store.Close()

	parser := services.NewResponseParser(store)

	// 创建订阅后端客户端和更新分发器
	apiClient := services.NewFeedAPIClient(cfg.APIBaseURL, cfg.AccessToken)
	dispatcher := services.NewUpdateDispatcher(cfg.SessionToken)

	// 启动推送消费者
	consumer := services.NewFeedConsumer(cfg, parser, dispatcher, archive)
	if err := consumer.Start(); err != nil {
		log.Fatalf("Feed consumer error: %v", err)
	}
	log.Println("Feed consumer started")

	// 创建 WebSocket Hub
	wsHub := web.NewHub()
	go wsHub.Run()

	// 启动 Web 服务器
	groups := web.NewGroupController(apiClient, dispatcher)
	server := web.NewServer(cfg, store, archive, groups, wsHub)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Web server error: %v", err)
		}
	}()
	log.Printf("Web server started on port %s", cfg.Port)

	log.Println("Service is running. Press Ctrl+C to stop.")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down service...")

	// 清理资源
	consumer.Stop()
	server.Stop()

	log.Println("Service stopped")
}
