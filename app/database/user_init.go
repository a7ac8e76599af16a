package database

import (
	"fmt"

	"track-forge/app/config"
	"track-forge/app/logger"
	"track-forge/app/model"
	"track-forge/app/utils"

	"gorm.io/gorm"
)

// InitAdminUser 初始化管理员账户
func InitAdminUser(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	// 检查配置文件中是否有管理员用户名和密码
	if cfg.Server.Username == "" || cfg.Server.Password == "" {
		log.Warnf("配置文件中未设置管理员账户，跳过初始化")
		return nil
	}

	wallet := model.NormalizeWallet(cfg.Server.Wallet)

	var existingAdmin model.User
	result := db.Where("is_admin = ?", true).First(&existingAdmin)

	if result.Error == nil {
		needUpdate := false

		if existingAdmin.Username != cfg.Server.Username {
			// 检查新用户名是否已被其他用户使用
			var conflictUser model.User
			if db.Where("username = ? AND id != ?", cfg.Server.Username, existingAdmin.ID).First(&conflictUser).Error == nil {
				return fmt.Errorf("用户名 '%s' 已被其他用户使用，无法更新管理员用户名", cfg.Server.Username)
			}
			log.Infof("管理员用户名从 '%s' 更新为 '%s'", existingAdmin.Username, cfg.Server.Username)
			existingAdmin.Username = cfg.Server.Username
			needUpdate = true
		}

		if !utils.VerifyPassword(cfg.Server.Password, existingAdmin.Password) {
			hash, err := utils.HashPassword(cfg.Server.Password)
			if err != nil {
				return fmt.Errorf("哈希密码失败: %v", err)
			}
			existingAdmin.Password = hash
			needUpdate = true
			log.Infof("管理员 '%s' 密码已更新", cfg.Server.Username)
		}

		if wallet != "" && existingAdmin.WalletAddress != wallet {
			existingAdmin.WalletAddress = wallet
			needUpdate = true
		}

		if needUpdate {
			if err := db.Save(&existingAdmin).Error; err != nil {
				return fmt.Errorf("更新管理员账户失败: %v", err)
			}
		}
		return nil
	}

	hashedPassword, err := utils.HashPassword(cfg.Server.Password)
	if err != nil {
		return fmt.Errorf("哈希密码失败: %v", err)
	}

	// 管理员按艺术家等级处理，不受每日次数限制
	adminUser := model.User{
		Username:      cfg.Server.Username,
		Password:      hashedPassword,
		WalletAddress: wallet,
		IsActive:      true,
		IsAdmin:       true,
		IsArtist:      true,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("创建管理员账户失败: %v", err)
	}

	log.Infof("管理员账户 '%s' 创建成功", cfg.Server.Username)
	return nil
}
