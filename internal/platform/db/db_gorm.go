// Package db はGORMによるデータベース接続とダイアレクト依存の機能を提供します。
// サポートするバックエンドは PostgreSQL と SQLite の2種類です。
package db

import (
	"fmt"
	"log"
	"os"
	"time"

	gpostgres "gorm.io/driver/postgres"
	gsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDB は DB_DRIVER（postgres または sqlite）に応じてデータベース接続を開きます。
// 起動直後にDBコンテナが立ち上がりきっていないケースに備え、60秒までリトライします。
func OpenDB() *gorm.DB {
	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		host := os.Getenv("DB_HOST")
		port := os.Getenv("DB_PORT")
		user := os.Getenv("DB_USER")
		pass := os.Getenv("DB_PASSWORD")
		name := os.Getenv("DB_NAME")
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, pass, name)
		dialector = gpostgres.Open(dsn)
	case "sqlite":
		path := os.Getenv("DB_PATH")
		if path == "" {
			path = "./crypto.db"
		}
		dialector = gsqlite.Open(path)
	default:
		log.Fatalf("unsupported DB_DRIVER %q (want postgres or sqlite)", driver)
	}

	var (
		db  *gorm.DB
		err error
	)

	deadline := time.Now().Add(60 * time.Second)
	for {
		db, err = gorm.Open(dialector, &gorm.Config{})
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			log.Fatalf("DB connect failed after 60s: %v", err)
		}
		log.Printf("DB connect failed, retrying...: %v", err)
		time.Sleep(3 * time.Second)
	}

	// マイグレーションはモデルを知っている呼び出し側（cmd）が行う
	return db
}
