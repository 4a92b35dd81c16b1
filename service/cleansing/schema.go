/*
 * @module service/cleansing/schema
 * @description 数据集类型及其原始列契约、占位符集合定义
 * @architecture 契约声明 - 清洗入口处显式校验输入结构
 * @documentReference DESIGN.md
 * @stateFlow 入口校验 -> 缺列返回 SchemaMismatchError
 * @rules 每种数据集的原始列集合固定；多余的列原样透传
 * @dependencies fmt, strings
 * @refs pipeline.go, errors.go
 */

package cleansing

import (
	"fmt"
	"strings"
)

// DatasetKind 数据集类型
type DatasetKind string

const (
	KindUsers    DatasetKind = "users"
	KindCards    DatasetKind = "cards"
	KindStores   DatasetKind = "stores"
	KindProducts DatasetKind = "products"
	KindOrders   DatasetKind = "orders"
	KindDates    DatasetKind = "dates"
)

// 列名
const (
	ColFirstName            = "first_name"
	ColLastName             = "last_name"
	ColDateOfBirth          = "date_of_birth"
	ColCompany              = "company"
	ColEmailAddress         = "email_address"
	ColAddress              = "address"
	ColCountry              = "country"
	ColCountryCode          = "country_code"
	ColPhoneNumber          = "phone_number"
	ColJoinDate             = "join_date"
	ColUserUUID             = "user_uuid"
	ColCardNumber           = "card_number"
	ColExpiryDate           = "expiry_date"
	ColCardProvider         = "card_provider"
	ColDatePaymentConfirmed = "date_payment_confirmed"
	ColCardNumberExpiry     = "card_number expiry_date"
	ColUnnamedIndex         = "Unnamed: 0"
	ColLongitude            = "longitude"
	ColLegacyLat            = "lat"
	ColLocality             = "locality"
	ColStoreCode            = "store_code"
	ColStaffNumbers         = "staff_numbers"
	ColOpeningDate          = "opening_date"
	ColStoreType            = "store_type"
	ColLatitude             = "latitude"
	ColContinent            = "continent"
	ColProductName          = "product_name"
	ColProductPrice         = "product_price"
	ColWeight               = "weight"
	ColCategory             = "category"
	ColEAN                  = "EAN"
	ColDateAdded            = "date_added"
	ColUUID                 = "uuid"
	ColRemoved              = "removed"
	ColProductCode          = "product_code"
	ColLevel0               = "level_0"
	ColDateUUID             = "date_uuid"
	ColStrayOne             = "1"
	ColProductQuantity      = "product_quantity"
	ColTimestamp            = "timestamp"
	ColMonth                = "month"
	ColYear                 = "year"
	ColDay                  = "day"
	ColTimePeriod           = "time_period"
)

// rawSchemas 各数据集的原始列契约
var rawSchemas = map[DatasetKind][]string{
	KindUsers: {
		ColFirstName, ColLastName, ColDateOfBirth, ColCompany, ColEmailAddress, ColAddress,
		ColCountry, ColCountryCode, ColPhoneNumber, ColJoinDate, ColUserUUID,
	},
	KindCards: {
		ColCardNumber, ColExpiryDate, ColCardProvider, ColDatePaymentConfirmed,
		ColCardNumberExpiry, ColUnnamedIndex,
	},
	KindStores: {
		ColAddress, ColLongitude, ColLegacyLat, ColLocality, ColStoreCode, ColStaffNumbers,
		ColOpeningDate, ColStoreType, ColLatitude, ColCountryCode, ColContinent,
	},
	KindProducts: {
		ColUnnamedIndex, ColProductName, ColProductPrice, ColWeight, ColCategory, ColEAN,
		ColDateAdded, ColUUID, ColRemoved, ColProductCode,
	},
	KindOrders: {
		ColLevel0, ColDateUUID, ColFirstName, ColLastName, ColUserUUID, ColCardNumber,
		ColStoreCode, ColProductCode, ColStrayOne, ColProductQuantity,
	},
	KindDates: {
		ColTimestamp, ColMonth, ColYear, ColDay, ColTimePeriod, ColDateUUID,
	},
}

// placeholderTokens 各数据集中表示"显式为空"的文本标记
var placeholderTokens = map[DatasetKind][]string{
	KindUsers:    {"NULL"},
	KindCards:    {"NULL", "NULL NULL"},
	KindStores:   {"NULL", "N/A"},
	KindProducts: {"NULL"},
	KindOrders:   {"NULL"},
	KindDates:    {"NULL"},
}

// AllKinds 返回全部数据集类型
func AllKinds() []DatasetKind {
	return []DatasetKind{KindUsers, KindCards, KindStores, KindProducts, KindOrders, KindDates}
}

// ParseDatasetKind 解析数据集类型
func ParseDatasetKind(value string) (DatasetKind, error) {
	kind := DatasetKind(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := rawSchemas[kind]; !ok {
		return "", fmt.Errorf("不支持的数据集类型: %s", value)
	}
	return kind, nil
}

// RawSchema 返回数据集的原始列契约副本
func RawSchema(kind DatasetKind) []string {
	cols := rawSchemas[kind]
	copied := make([]string, len(cols))
	copy(copied, cols)
	return copied
}

// CheckSchema 校验批次是否包含数据集要求的全部列
func CheckSchema(kind DatasetKind, batch *RecordBatch) error {
	expected, ok := rawSchemas[kind]
	if !ok {
		return fmt.Errorf("不支持的数据集类型: %s", kind)
	}
	if batch == nil {
		return &SchemaMismatchError{Kind: kind, Missing: RawSchema(kind)}
	}

	var missing []string
	for _, col := range expected {
		if !batch.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Kind: kind, Missing: missing}
	}
	return nil
}
