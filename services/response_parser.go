package services

import (
	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// ResponseParser 将解码后的聚合器响应翻译为实体缓存的写入。
// 无状态，可被多个协程并发调用（写入顺序仅在单次 Parse 内有保证）。
type ResponseParser struct {
	store *EntityStore
}

// NewResponseParser 创建响应解析器
func NewResponseParser(store *EntityStore) *ResponseParser {
	return &ResponseParser{store: store}
}

// Parse 按记录顺序处理一次聚合器响应。
// 完整实体记录按原顺序写入（决定首见顺序），变更记录按变更类型分发
func (p *ResponseParser) Parse(response *models.AggregatorResponse) {
	if response == nil {
		return
	}

	for _, record := range response.Records {
		switch record.RecordType {
		case models.RecordTypeEntity:
			p.storeEntityRecord(record)
		case models.RecordTypeChange:
			p.applyChangeRecord(record.Change)
		default:
			logger.Printf("[ResponseParser] Skipping unknown record type: %s", record.RecordType)
		}
	}
}

// storeEntityRecord 解码并写入一条完整实体记录，未知实体类型跳过
func (p *ResponseParser) storeEntityRecord(record models.AggregatorRecord) {
	entity, err := models.DecodeEntity(record.EntityType, record.Entity)
	if err != nil {
		logger.Printf("[ResponseParser] Skipping entity record: %v", err)
		return
	}
	p.store.Store(entity)
}

// applyChangeRecord 处理一条增量变更。
// 上游约定：CREATE/DELETE 记录在此通道不落地（实时增量走推送通道单独处理），
// UPDATE 只有投注报价的赔率变更才值得一次缓存写入，其余静默丢弃
func (p *ResponseParser) applyChangeRecord(change *models.ChangeRecord) {
	if change == nil {
		logger.Printf("[ResponseParser] Skipping change record without body")
		return
	}

	switch change.ChangeType {
	case models.ChangeTypeCreate:
		logger.Debugf("[ResponseParser] Discarding create record for %s/%s", change.EntityType, change.ID)

	case models.ChangeTypeDelete:
		logger.Debugf("[ResponseParser] Discarding delete record for %s/%s", change.EntityType, change.ID)

	case models.ChangeTypeUpdate:
		if change.ChangedProperties == nil {
			logger.Printf("[ResponseParser] Skipping update record without changed properties: %s/%s",
				change.EntityType, change.ID)
			return
		}
		if change.EntityType != models.TypeBettingOffer {
			logger.Debugf("[ResponseParser] Discarding update record for %s/%s", change.EntityType, change.ID)
			return
		}
		if _, ok := change.ChangedProperties["odds"]; !ok {
			logger.Debugf("[ResponseParser] Discarding betting offer update without odds: %s", change.ID)
			return
		}
		p.store.UpdateEntity(change.EntityType, change.ID, change.ChangedProperties)

	default:
		logger.Printf("[ResponseParser] Skipping unknown change type: %s", change.ChangeType)
	}
}
