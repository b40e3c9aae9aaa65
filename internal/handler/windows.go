package handler

import (
	"go.uber.org/zap"

	"github.com/talismans/server/internal/net/packet"
	"github.com/talismans/server/internal/world"
)

// HandleMerchantOffers 處理送出的交易視窗封包：交易結果若為偽裝 talisman，
// 換成外觀物品。伺服器端的交易定義不變。
func HandleMerchantOffers(player string, p *packet.OpenWindowMerchant, deps *Deps) {
	if p == nil || len(p.Offers) == 0 {
		return
	}
	p.Offers = deps.Overlay.DisguiseOffers(p.Offers, deps.Trades)
}

// HandleWindowItems 處理送出的視窗內容封包。玩家自己的背包 (window 0) 一律顯示真實物品，
// 效果套用在持有者身上；目前開啟的其他視窗中，別人擁有的偽裝 talisman 換成外觀物品。
func HandleWindowItems(player string, p *packet.WindowItems, deps *Deps) {
	if p == nil || len(p.Items) == 0 {
		return
	}
	if p.WindowID == world.PlayerInventoryWindow {
		return
	}
	win, ok := deps.Inventories.OpenInventory(player)
	if !ok || win.ID != p.WindowID {
		deps.Log.Debug("視窗已關閉，略過",
			zap.String("player", player),
			zap.Int("window", p.WindowID))
		return
	}
	p.Items = deps.Overlay.DisguiseItems(p.Items, player)
}

// HandleCreativeSlot 處理收到的創造模式放置封包：還原外觀物品，
// 使玩家無法以外觀物品複製或破壞 talisman。
func HandleCreativeSlot(player string, p *packet.SetCreativeSlot, deps *Deps) {
	if p == nil || p.Item == nil {
		return
	}
	p.Item = deps.Overlay.Revert(p.Item)
}
