package orderlog

import "gorm.io/datatypes"

// OrderLogModel maps to 'order_log' table.
type OrderLogModel struct {
	ID        int64          `gorm:"column:id;primaryKey" json:"id"`
	TraceID   string         `gorm:"column:trace_id;index" json:"trace_id,omitempty"`
	Kind      string         `gorm:"column:kind" json:"kind"`
	InstID    string         `gorm:"column:inst_id;index" json:"inst_id"`
	Side      string         `gorm:"column:side" json:"side,omitempty"`
	PosSide   string         `gorm:"column:pos_side" json:"pos_side,omitempty"`
	ClOrdID   string         `gorm:"column:cl_ord_id" json:"cl_ord_id,omitempty"`
	OrdID     string         `gorm:"column:ord_id" json:"ord_id,omitempty"`
	Status    string         `gorm:"column:status" json:"status"`
	Request   datatypes.JSON `gorm:"column:request" json:"request,omitempty"`
	Response  datatypes.JSON `gorm:"column:response" json:"response,omitempty"`
	Error     string         `gorm:"column:error" json:"error,omitempty"`
	Timestamp int64          `gorm:"column:timestamp;index" json:"ts"`
}

func (OrderLogModel) TableName() string { return "order_log" }
